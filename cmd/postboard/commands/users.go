package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/gqlclient"
	"github.com/dyluth/postboard/internal/table"
)

var (
	userName     string
	userEmail    string
	usersOutput  string
	postsOutput  string
	postTitle    string
	postContent  string
	postAuthorID int32
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List and create users through the Users service",
}

var usersAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Create a user",
	Example: `  postboard users add --name Ann --email ann@example.com`,
	Args:    cobra.NoArgs,
	RunE:    runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

func init() {
	usersAddCmd.Flags().StringVar(&userName, "name", "", "User name (required)")
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "User email (required)")
	_ = usersAddCmd.MarkFlagRequired("name")
	_ = usersAddCmd.MarkFlagRequired("email")

	usersListCmd.Flags().StringVarP(&usersOutput, "output", "o", "default", "Output format: default or json")

	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	u, err := gqlclient.New(cfg.Client.UsersURL).CreateUser(cmd.Context(), userName, userEmail)
	if err != nil {
		return serviceError(cmd, "users", cfg.Client.UsersURL, err)
	}

	newPrinter(cmd).Success("Created user #%d %s <%s>\n", u.ID, u.Name, u.Email)
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	format, err := table.ParseOutputFormat(usersOutput, table.OutputFormatDefault, table.OutputFormatJSON)
	if err != nil {
		return newPrinter(cmd).Error("invalid output format", err.Error(), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	list, err := gqlclient.New(cfg.Client.UsersURL).FetchUsers(cmd.Context())
	if err != nil {
		return serviceError(cmd, "users", cfg.Client.UsersURL, err)
	}

	out := cmd.OutOrStdout()
	if format == table.OutputFormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No users found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	return tw.Flush()
}

// serviceError reports a failed call to one of the GraphQL services.
func serviceError(cmd *cobra.Command, service, url string, err error) error {
	return newPrinter(cmd).ErrorWithContext(
		fmt.Sprintf("%s service request failed", service),
		fmt.Sprintf("Error: %v", err),
		map[string]string{"Endpoint": url},
		[]string{fmt.Sprintf("Start the service:\n  postboard serve %s", service)},
	)
}
