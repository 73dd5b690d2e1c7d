package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loykin/rdhost/pkg/client"
)

type connectFlags struct {
	Addr     string
	Username string
	Password string
}

func newConnectCmd() *cobra.Command {
	f := &connectFlags{}
	cmd := &cobra.Command{
		Use:          "connect",
		Short:        "Open an interactive session to a running host",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(f, os.Stdin)
		},
	}
	cmd.Flags().StringVar(&f.Addr, "addr", client.DefaultConfig().Addr, "host address")
	cmd.Flags().StringVarP(&f.Username, "user", "u", "", "username")
	cmd.Flags().StringVarP(&f.Password, "password", "p", "", "password")
	return cmd
}

func runConnect(f *connectFlags, input *os.File) error {
	c, w, err := client.Dial(client.Config{Addr: f.Addr})
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	fmt.Println(w.Message)

	sc := bufio.NewScanner(input)
	username, password := f.Username, f.Password
	if username == "" {
		fmt.Print("Username: ")
		if !sc.Scan() {
			return fmt.Errorf("no username provided")
		}
		username = strings.TrimSpace(sc.Text())
	}
	if password == "" {
		fmt.Print("Password: ")
		if !sc.Scan() {
			return fmt.Errorf("no password provided")
		}
		password = strings.TrimSpace(sc.Text())
	}

	resp, err := c.Authenticate(username, password)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &exitError{code: 1, msg: resp.Message}
	}
	fmt.Println("Authenticated. Type a command, 'sysinfo', or 'exit'.")

	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "sysinfo":
			info, err := c.SystemInfo()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Printf("%s %s (go %s) at %s\n", info.Hostname, info.Platform, info.GoVersion, info.CurrentTime)
		default:
			out, err := c.Run(line)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if out.Stdout != "" {
				fmt.Print(out.Stdout)
			}
			if out.Stderr != "" {
				_, _ = fmt.Fprint(os.Stderr, out.Stderr)
			}
			if out.ReturnCode != 0 {
				fmt.Printf("(exit %d)\n", out.ReturnCode)
			}
		}
	}
}
