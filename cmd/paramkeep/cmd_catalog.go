package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/paramkeep/paramkeep/client"
)

const defaultEnv = "default"

func created(out io.Writer, kind, name string, err error) error {
	switch {
	case err == nil:
		fmt.Fprintf(out, "Created %s '%s'\n", kind, name)
		return nil
	case client.IsConflict(err):
		fmt.Fprintf(out, "%s '%s' already exists\n", kind, name)
		return nil
	default:
		return err
	}
}

func deleted(out io.Writer, kind, name string, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s '%s'\n", kind, name)
	return nil
}

// runOrFatal runs fn with the command context and exits on failure.
func runOrFatal(msg string, fn func(ctx context.Context, out io.Writer) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := fn(cmd.Context(), cmd.OutOrStdout()); err != nil {
			fatal(msg, err)
		}
	}
}

func newEnvironmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environments",
		Aliases: []string{"environment", "envs", "env"},
		Short:   "Manage environments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List environments",
		Args:    cobra.NoArgs,
		Run: runOrFatal("list environments", func(ctx context.Context, out io.Writer) error {
			envs, err := apiClient.Environments.List(ctx)
			if err != nil {
				return err
			}
			t := newTable("environments", "Name", "Description", "Created")
			for _, e := range envs {
				t.add(e.Name, e.Name, e.Description, formatTime(e.CreatedAt))
			}
			return t.render(out, flagFmt)
		}),
	})

	var desc string
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create an environment",
		Args:  cobra.ExactArgs(1),
	}
	set.Flags().StringVar(&desc, "desc", "", "Description")
	set.Run = func(cmd *cobra.Command, args []string) {
		_, err := apiClient.Environments.Create(cmd.Context(), client.CreateNamedRequest{Name: args[0], Description: desc})
		if err := created(cmd.OutOrStdout(), "environment", args[0], err); err != nil {
			fatal("create environment", err)
		}
	}
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete an environment and its values",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := apiClient.Environments.Delete(cmd.Context(), args[0])
			if err := deleted(cmd.OutOrStdout(), "environment", args[0], err); err != nil {
				fatal("delete environment", err)
			}
		},
	})
	return cmd
}

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "proj"},
		Short:   "Manage projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		Run: runOrFatal("list projects", func(ctx context.Context, out io.Writer) error {
			projects, err := apiClient.Projects.List(ctx)
			if err != nil {
				return err
			}
			t := newTable("projects", "Name", "Description", "Created")
			for _, p := range projects {
				t.add(p.Name, p.Name, p.Description, formatTime(p.CreatedAt))
			}
			return t.render(out, flagFmt)
		}),
	})

	var desc string
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
	}
	set.Flags().StringVar(&desc, "desc", "", "Description")
	set.Run = func(cmd *cobra.Command, args []string) {
		_, err := apiClient.Projects.Create(cmd.Context(), client.CreateNamedRequest{Name: args[0], Description: desc})
		if err := created(cmd.OutOrStdout(), "project", args[0], err); err != nil {
			fatal("create project", err)
		}
	}
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a project with its parameters and templates",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := apiClient.Projects.Delete(cmd.Context(), args[0])
			if err := deleted(cmd.OutOrStdout(), "project", args[0], err); err != nil {
				fatal("delete project", err)
			}
		},
	})
	return cmd
}

func newParameterCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "parameters",
		Aliases: []string{"parameter", "params", "param"},
		Short:   "Manage parameters and their values",
	}
	cmd.PersistentFlags().StringVar(&project, "project", "", "Project name")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the parameters of a project",
		Args:    cobra.NoArgs,
		Run: runOrFatal("list parameters", func(ctx context.Context, out io.Writer) error {
			params, err := apiClient.Parameters.List(ctx, project)
			if err != nil {
				return err
			}
			t := newTable("parameters", "Name", "Secret", "Description")
			for _, p := range params {
				t.add(p.Name, p.Name, fmt.Sprint(p.Secret), p.Description)
			}
			return t.render(out, flagFmt)
		}),
	})

	var (
		desc, value, env string
		secret           bool
	)
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a parameter and optionally set its value in an environment",
		Args:  cobra.ExactArgs(1),
	}
	set.Flags().StringVar(&desc, "desc", "", "Description")
	set.Flags().BoolVar(&secret, "secret", false, "Mark the parameter as secret")
	set.Flags().StringVar(&value, "value", "", "Value to set")
	set.Flags().StringVar(&env, "env", defaultEnv, "Environment of the value")
	set.Run = func(cmd *cobra.Command, args []string) {
		ctx, out, name := cmd.Context(), cmd.OutOrStdout(), args[0]
		_, err := apiClient.Parameters.Create(ctx, project, client.CreateParameterRequest{Name: name, Description: desc, Secret: secret})
		if err := created(out, "parameter", name, err); err != nil {
			fatal("create parameter", err)
		}
		if !cmd.Flags().Changed("value") {
			return
		}
		if _, err := apiClient.Parameters.SetValue(ctx, project, name, env, value); err != nil {
			fatal("set value", err)
		}
		fmt.Fprintf(out, "Set '%s' in environment '%s'\n", name, env)
	}
	cmd.AddCommand(set)

	var unsetEnv string
	unset := &cobra.Command{
		Use:   "unset <name>",
		Short: "Remove a parameter's value in an environment",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := apiClient.Parameters.DeleteValue(cmd.Context(), project, args[0], unsetEnv); err != nil {
				fatal("unset value", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed value of '%s' in environment '%s'\n", args[0], unsetEnv)
		},
	}
	unset.Flags().StringVar(&unsetEnv, "env", defaultEnv, "Environment of the value")
	cmd.AddCommand(unset)

	cmd.AddCommand(&cobra.Command{
		Use:   "values <name>",
		Short: "Show a parameter's values across environments",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			values, err := apiClient.Parameters.Values(cmd.Context(), project, args[0])
			if err != nil {
				fatal("list values", err)
			}
			t := newTable("values", "Environment", "Value", "Updated")
			for _, v := range values {
				t.add(v.ID, v.EnvironmentID, v.Value, formatTime(v.UpdatedAt))
			}
			if err := t.render(cmd.OutOrStdout(), flagFmt); err != nil {
				fatal("output", err)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a parameter and its values",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := apiClient.Parameters.Delete(cmd.Context(), project, args[0])
			if err := deleted(cmd.OutOrStdout(), "parameter", args[0], err); err != nil {
				fatal("delete parameter", err)
			}
		},
	})
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "temp"},
		Short:   "Manage templates",
	}
	cmd.PersistentFlags().StringVar(&project, "project", "", "Project name")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the templates of a project",
		Args:    cobra.NoArgs,
		Run: runOrFatal("list templates", func(ctx context.Context, out io.Writer) error {
			templates, err := apiClient.Templates.List(ctx, project)
			if err != nil {
				return err
			}
			t := newTable("templates", "Name", "Created")
			for _, tmpl := range templates {
				t.add(tmpl.Name, tmpl.Name, formatTime(tmpl.CreatedAt))
			}
			return t.render(out, flagFmt)
		}),
	})

	var body, bodyFile string
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a template",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					fatal("read template body", err)
				}
				body = string(data)
			}
			_, err := apiClient.Templates.Create(cmd.Context(), project, client.CreateTemplateRequest{Name: args[0], Body: body})
			if err := created(cmd.OutOrStdout(), "template", args[0], err); err != nil {
				fatal("create template", err)
			}
		},
	}
	set.Flags().StringVar(&body, "body", "", "Template body")
	set.Flags().StringVarP(&bodyFile, "file", "f", "", "Read the template body from a file")
	set.MarkFlagsMutuallyExclusive("body", "file")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a template",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := apiClient.Templates.Delete(cmd.Context(), project, args[0])
			if err := deleted(cmd.OutOrStdout(), "template", args[0], err); err != nil {
				fatal("delete template", err)
			}
		},
	})
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user", "us"},
		Short:   "Manage users and service accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List users",
		Args:    cobra.NoArgs,
		Run: runOrFatal("list users", func(ctx context.Context, out io.Writer) error {
			users, err := apiClient.Users.List(ctx)
			if err != nil {
				return err
			}
			t := newTable("users", "Name", "Type", "Created")
			for _, u := range users {
				t.add(u.Name, u.Name, u.Kind, formatTime(u.CreatedAt))
			}
			return t.render(out, flagFmt)
		}),
	})

	var kind string
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Create a user and print its API key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			u, err := apiClient.Users.Create(cmd.Context(), client.CreateUserRequest{Name: args[0], Kind: kind})
			if err != nil {
				fatal("create user", err)
			}
			out := cmd.OutOrStdout()
			if flagFmt == "table" {
				fmt.Fprintf(out, "Created %s '%s'\nAPI key: %s\n", u.Kind, u.Name, u.APIKey)
				return
			}
			if err := output(out, u, u.APIKey); err != nil {
				fatal("output", err)
			}
		},
	}
	set.Flags().StringVar(&kind, "type", "user", "Account type: user or service-account")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a user and revoke its API key",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			err := apiClient.Users.Delete(cmd.Context(), args[0])
			if err := deleted(cmd.OutOrStdout(), "user", args[0], err); err != nil {
				fatal("delete user", err)
			}
		},
	})
	return cmd
}
