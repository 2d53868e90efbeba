package config

import (
	"errors"
	"fmt"
	"os/user"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrCredentialsRequired is returned when credentials are missing and
// nothing can prompt for them
var ErrCredentialsRequired = errors.New("redmine user and password are required")

// Prompter asks the operator for a value
type Prompter interface {
	Prompt(label, defaultValue string, secret bool) (string, error)
}

// TerminalPrompter prompts on the controlling terminal
type TerminalPrompter struct{}

// Prompt implements Prompter using promptui
func (TerminalPrompter) Prompt(label, defaultValue string, secret bool) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	if secret {
		p.Mask = '*'
	} else {
		p.AllowEdit = true
	}
	return p.Run()
}

// ResolveCredentials fills in a missing user or password by prompting.
// The user prompt defaults to the current OS user. A nil prompter turns
// missing credentials into ErrCredentialsRequired.
func (c *Config) ResolveCredentials(prompter Prompter) error {
	if c.HasCredentials() {
		return nil
	}
	if prompter == nil {
		return ErrCredentialsRequired
	}

	if c.Redmine.User == "" {
		value, err := prompter.Prompt("Redmine user", currentUsername(), false)
		if err != nil {
			return fmt.Errorf("prompt for user: %w", err)
		}
		c.Redmine.User = strings.TrimSpace(value)
	}
	if c.Redmine.Password == "" {
		value, err := prompter.Prompt(fmt.Sprintf("Password for %s", c.Redmine.User), "", true)
		if err != nil {
			return fmt.Errorf("prompt for password: %w", err)
		}
		c.Redmine.Password = value
	}

	if !c.HasCredentials() {
		return ErrCredentialsRequired
	}
	return nil
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
