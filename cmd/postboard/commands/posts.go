package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dyluth/postboard/internal/gqlclient"
	"github.com/dyluth/postboard/internal/table"
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List and create posts through the Posts service",
}

var postsAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Create a post and publish it to postAdded subscribers",
	Example: `  postboard posts add --title T1 --content "hello" --user-id 1`,
	Args:    cobra.NoArgs,
	RunE:    runPostsAdd,
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all posts",
	Args:  cobra.NoArgs,
	RunE:  runPostsList,
}

func init() {
	postsAddCmd.Flags().StringVar(&postTitle, "title", "", "Post title (required)")
	postsAddCmd.Flags().StringVar(&postContent, "content", "", "Post content")
	postsAddCmd.Flags().Int32Var(&postAuthorID, "user-id", 0, "Id of the author; omitted leaves the post without one")
	_ = postsAddCmd.MarkFlagRequired("title")

	postsListCmd.Flags().StringVarP(&postsOutput, "output", "o", "default", "Output format: default or json")

	postsCmd.AddCommand(postsAddCmd, postsListCmd)
	rootCmd.AddCommand(postsCmd)
}

func runPostsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var userID *int32
	if cmd.Flags().Changed("user-id") {
		id := postAuthorID
		userID = &id
	}

	p, err := gqlclient.New(cfg.Client.PostsURL).CreatePost(cmd.Context(), postTitle, postContent, userID)
	if err != nil {
		return serviceError(cmd, "posts", cfg.Client.PostsURL, err)
	}

	newPrinter(cmd).Success("Created post #%d %s\n", p.ID, p.Title)
	return nil
}

func runPostsList(cmd *cobra.Command, args []string) error {
	format, err := table.ParseOutputFormat(postsOutput, table.OutputFormatDefault, table.OutputFormatJSON)
	if err != nil {
		return newPrinter(cmd).Error("invalid output format", err.Error(), nil)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	list, err := gqlclient.New(cfg.Client.PostsURL).FetchPosts(cmd.Context())
	if err != nil {
		return serviceError(cmd, "posts", cfg.Client.PostsURL, err)
	}

	out := cmd.OutOrStdout()
	if format == table.OutputFormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No posts found")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUSER ID")
	for _, p := range list {
		author := "-"
		if p.UserID != nil {
			author = fmt.Sprintf("%d", *p.UserID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Title, author)
	}
	return tw.Flush()
}
