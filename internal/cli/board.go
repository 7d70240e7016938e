package cli

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newBoardCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "board", Short: "Inspect boards and manage members"}
	cmd.AddCommand(newBoardShowCommand(global), newBoardAddMemberCommand(global))
	return cmd
}

type boardView struct {
	IdeaID  string             `json:"idea_id" yaml:"idea_id"`
	Columns []board.Column     `json:"columns" yaml:"columns"`
	Labels  []board.Label      `json:"labels" yaml:"labels"`
	Members []board.TeamMember `json:"members" yaml:"members"`
}

func newBoardShowCommand(global *globalOptions) *cobra.Command {
	var ideaID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the columns, labels and members of a board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := global.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			view := boardView{IdeaID: ideaID}
			if view.Columns, err = s.handle.Store.ListColumns(ctx, ideaID); err != nil {
				return fmt.Errorf("list columns: %w", err)
			}
			if view.Labels, err = s.handle.Store.ListLabels(ctx, ideaID); err != nil {
				return fmt.Errorf("list labels: %w", err)
			}
			if view.Members, err = s.handle.Store.ListTeamMembers(ctx, ideaID); err != nil {
				return fmt.Errorf("list team members: %w", err)
			}

			out := cmd.OutOrStdout()
			if ok, err := structured(out, global.output, view); ok {
				return err
			}

			tw := newTable(out, "Columns", table.Row{"ID", "Title", "Position", "Done"})
			for _, c := range view.Columns {
				done := ""
				if c.IsDoneColumn {
					done = "yes"
				}
				tw.AppendRow(table.Row{c.ID, c.Title, c.Position, done})
			}
			tw.Render()

			tw = newTable(out, "Labels", table.Row{"ID", "Name", "Color"})
			for _, l := range view.Labels {
				tw.AppendRow(table.Row{l.ID, l.Name, l.Color})
			}
			tw.Render()

			tw = newTable(out, "Members", table.Row{"User", "Name", "Email"})
			for _, m := range view.Members {
				tw.AppendRow(table.Row{m.UserID, m.FullName, orDash(m.Email)})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&ideaID, "idea", "", "board (idea) id")
	_ = cmd.MarkFlagRequired("idea")
	return cmd
}

func newBoardAddMemberCommand(global *globalOptions) *cobra.Command {
	var (
		ideaID string
		member board.TeamMember
	)

	cmd := &cobra.Command{
		Use:   "add-member",
		Short: "Add or update a board member so imports can assign tasks to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			member.FullName = strings.TrimSpace(member.FullName)
			if member.FullName == "" {
				return fmt.Errorf("--name must not be empty")
			}

			ctx := cmd.Context()
			s, err := global.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.handle.Store.AddTeamMember(ctx, ideaID, member); err != nil {
				return fmt.Errorf("add member: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is a member of %s\n", member.FullName, ideaID)
			return nil
		},
	}

	cmd.Flags().StringVar(&ideaID, "idea", "", "board (idea) id")
	cmd.Flags().StringVar(&member.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&member.FullName, "name", "", "full name, matched against assignee names in imports")
	cmd.Flags().StringVar(&member.Email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("idea")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
