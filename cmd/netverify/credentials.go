package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/netverify/pkg/inventory"
)

// promptCredentials asks once for a username and password and fills them
// into every device that has none. It runs before any engine sees the
// devices. Without a terminal, missing credentials are an error.
func promptCredentials(devs []*inventory.Device) error {
	var needUser, needPass []string
	for _, d := range devs {
		if d.Username == "" {
			needUser = append(needUser, d.Name)
		}
		if d.Password == "" {
			needPass = append(needPass, d.Name)
		}
	}
	if len(needUser) == 0 && len(needPass) == 0 {
		return nil
	}

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		missing := append(needUser, needPass...)
		return fmt.Errorf("credentials missing for %s: add them to the inventory or run interactively",
			strings.Join(dedupe(missing), ", "))
	}

	var username string
	if len(needUser) > 0 {
		fmt.Fprintf(os.Stderr, "Username for %s: ", strings.Join(needUser, ", "))
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	var password string
	if len(needPass) > 0 {
		fmt.Fprintf(os.Stderr, "Password for %s: ", strings.Join(needPass, ", "))
		b, err := term.ReadPassword(stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(b)
	}

	for _, d := range devs {
		if d.Username == "" {
			d.Username = username
		}
		if d.Password == "" {
			d.Password = password
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
