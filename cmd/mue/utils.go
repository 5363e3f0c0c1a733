package main

import "fmt"

func errRequiresConfirmation(action string) error {
	return fmt.Errorf("%s is destructive; re-run with --yes to confirm", action)
}
