package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loykin/rdhost/internal/auth"
)

type userFlags struct {
	StoreDSN string
	Password string
}

func newUserCmd() *cobra.Command {
	f := &userFlags{}
	cmd := &cobra.Command{
		Use:          "user",
		Short:        "Manage host user accounts",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&f.StoreDSN, "store", "rdhost_users.db", "user store DSN")

	add := &cobra.Command{
		Use:          "add <username>",
		Short:        "Create a user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.Password == "" {
				return fmt.Errorf("--password is required")
			}
			store, err := auth.OpenStore(f.StoreDSN)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.CreateUser(cmd.Context(), args[0], f.Password); err != nil {
				return err
			}
			fmt.Println("user created:", args[0])
			return nil
		},
	}
	add.Flags().StringVarP(&f.Password, "password", "p", "", "password for the new user")

	del := &cobra.Command{
		Use:          "del <username>",
		Short:        "Delete a user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auth.OpenStore(f.StoreDSN)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("user deleted:", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:          "list",
		Short:        "List users",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auth.OpenStore(f.StoreDSN)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			users, err := store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%s\t%s\n", u.Username, u.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.AddCommand(add, del, list)
	return cmd
}
