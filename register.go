package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexandro/ferret/register"
)

func newRegisterCmd() *cobra.Command {
	var (
		serverName string
		directory  string
	)

	cmd := &cobra.Command{
		Use:   "register project|user [-- serve flags...]",
		Short: "Add ferret to an MCP client config",
		Long: `Writes a ferret entry into .mcp.json in the project directory (project scope)
or into ~/.claude.json (user scope). Flags after "--" are passed to "ferret serve".`,
		Example: `  ferret register project --dir ~/Documents -- --algorithm blake3
  ferret register user --name ferret-docs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := register.ParseScope(args[0])
			if err != nil {
				return err
			}
			var serverArgs []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				serverArgs = args[dash:]
			} else if len(args) > 1 {
				return fmt.Errorf("unexpected arguments %v (pass serve flags after \"--\")", args[1:])
			}

			configPath, err := register.Register(register.Options{
				ServerName: serverName,
				Scope:      scope,
				Directory:  directory,
				ServerArgs: serverArgs,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered MCP server in %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverName, "name", "", "server name in the config (default: derived from the binary name)")
	cmd.Flags().StringVar(&directory, "dir", "", "directory to serve; for project scope also where .mcp.json is written (default: .)")
	return cmd
}
