package main

import (
	"context"
	"fmt"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/webui"
)

// runSecrets maintains the encrypted secrets file:
//
//	roadmapbp secrets set NAME VALUE
//	roadmapbp secrets list
//	roadmapbp secrets delete NAME
func runSecrets(_ context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 {
		return usagef("secrets requires a subcommand: set, list or delete")
	}
	sub, rest := args[0], args[1:]

	var want int
	switch sub {
	case "set":
		want = 2
	case "delete":
		want = 1
	case "list":
		want = 0
	default:
		return usagef("unknown secrets subcommand %q", sub)
	}
	if len(rest) != want {
		return usagef("secrets %s expects %d argument(s), got %d", sub, want, len(rest))
	}
	if sub != "list" && !webui.ValidSecretName(rest[0]) {
		return usagef("secret name must contain only alphanumeric characters and underscores")
	}

	path := config.SecretsFilePath()
	exists := config.SecretsFileExists(path)
	if !exists && sub != "set" {
		if sub == "delete" {
			return fmt.Errorf("no secrets file at %s", path)
		}
		return nil
	}
	password, err := secretsPassword(env, !exists && sub == "set")
	if err != nil {
		return err
	}
	if exists {
		if err := config.UnlockSecrets(path, password); err != nil {
			return fmt.Errorf("failed to unlock %s: %w", path, err)
		}
	} else {
		config.SetDecryptedSecrets(map[string]string{})
	}

	switch sub {
	case "list":
		for _, name := range config.SecretNames() {
			fmt.Fprintln(env.stdout, name)
		}
		return nil
	case "set":
		config.SetSecret(rest[0], rest[1])
	case "delete":
		config.DeleteSecret(rest[0])
	}

	if err := config.SaveSecretsToFile(path, password); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	fmt.Fprintf(env.stdout, "updated %s\n", path)
	return nil
}
