package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/recall-mcp/internal/service"
)

func newStoreCmd(opts *rootOptions) *cobra.Command {
	var (
		memoryType string
		tags       []string
		project    string
		metadata   string
	)

	cmd := &cobra.Command{
		Use:   "store <content>",
		Short: "Store a memory",
		Long: `Store a memory. The vector for it is computed by the next "recall serve"
backlog scan.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta map[string]any
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return fmt.Errorf("invalid --metadata: %w", err)
				}
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			m, err := a.svc.Remember(cmd.Context(), service.StoreRequest{
				Content:  strings.Join(args, " "),
				Type:     memoryType,
				Tags:     tags,
				Metadata: meta,
				Project:  project,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().StringVarP(&memoryType, "type", "t", "", "memory type (default note)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag, repeatable or comma separated")
	cmd.Flags().StringVarP(&project, "project", "p", "", "project name (default global)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON object attached to the memory")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		mode     string
		project  string
		types    []string
		tags     []string
		limit    int
		allTerms bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := service.ParseMode(mode)
			if err != nil {
				return err
			}
			if len(tags) > 0 && mode == "" {
				m = service.ModeTags
			}

			req := service.SearchRequest{
				Mode:    m,
				Project: project,
				Types:   types,
				Tags:    tags,
				Limit:   limit,
			}
			query := strings.Join(args, " ")
			if allTerms {
				req.Terms = strings.Fields(query)
			} else {
				req.Query = query
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			resp, err := a.svc.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "hybrid, lexical or tags (default hybrid, or tags when --tag is given)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "restrict to one project")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "memory types to include")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags that must all be present")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results")
	cmd.Flags().BoolVar(&allTerms, "all-terms", false, "require every word instead of the exact phrase")
	return cmd
}

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects with stored memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			projects, err := a.svc.ListProjects()
			if err != nil {
				return err
			}
			for _, p := range projects {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newTagsCmd(opts *rootOptions) *cobra.Command {
	var project, memoryType string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Show tag usage counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			stats, err := a.svc.TagStats(cmd.Context(), project, memoryType)
			if err != nil {
				return err
			}
			for _, tc := range stats {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s\n", tc.Count, tc.Tag); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "restrict to one project")
	cmd.Flags().StringVarP(&memoryType, "type", "t", "", "only count memories of this type")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and embedding worker status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			st, err := a.svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}
