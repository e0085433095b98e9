package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/leadtriage/internal/leads"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	Long: `List leads, newest first.

Examples:
  leadctl list --status new --priority High
  leadctl list --conversation 120363025@g.us --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		q := url.Values{}
		for flag, param := range map[string]string{
			"status":       "status",
			"priority":     "priority",
			"conversation": "conversation_id",
			"assignee":     "assignee",
			"since":        "since",
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				q.Set(param, v)
			}
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}

		resp, err := client.do(cmd.Context(), http.MethodGet, "/admin/leads", q, nil)
		if err != nil {
			return err
		}
		var out leads.ListLeadsResponse
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printLeads(cmd.OutOrStdout(), out.Leads)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lead counts and today's message volume",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.do(cmd.Context(), http.MethodGet, "/admin/leads/stats", nil, nil)
		if err != nil {
			return err
		}
		var stats leads.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show one lead with its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.do(cmd.Context(), http.MethodGet, "/admin/leads/"+url.PathEscape(args[0]), nil, nil)
		if err != nil {
			return err
		}
		var lead leads.Lead
		if err := decodeJSON(resp, &lead); err != nil {
			return err
		}
		printLead(cmd.OutOrStdout(), lead)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <lead-id>",
	Short: "Change a lead's status, assignee or opportunity id",
	Long: `Change a lead's status, assignee or opportunity id.

Examples:
  leadctl update 01HX... --status in_progress --assignee ravi
  leadctl update 01HX... --opp-id 99812 --note "created in CRM"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req leads.UpdateLeadRequest
		if cmd.Flags().Changed("status") {
			v, _ := cmd.Flags().GetString("status")
			req.Status = &v
		}
		if cmd.Flags().Changed("assignee") {
			v, _ := cmd.Flags().GetString("assignee")
			req.Assignee = &v
		}
		if cmd.Flags().Changed("opp-id") {
			v, _ := cmd.Flags().GetString("opp-id")
			req.OppID = &v
		}
		req.Note, _ = cmd.Flags().GetString("note")
		if req.Status == nil && req.Assignee == nil && req.OppID == nil && req.Note == "" {
			return fmt.Errorf("nothing to update: pass --status, --assignee, --opp-id or --note")
		}

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.do(cmd.Context(), http.MethodPatch, "/admin/leads/"+url.PathEscape(args[0]), nil, req)
		if err != nil {
			return err
		}
		var lead leads.Lead
		if err := decodeJSON(resp, &lead); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s: status=%s assignee=%s\n", lead.ID, lead.Status, lead.Assignee)
		return nil
	},
}

func init() {
	listCmd.Flags().String("status", "", "filter by status (new, in_progress, closed, lost)")
	listCmd.Flags().String("priority", "", "filter by priority (High, Medium, Low)")
	listCmd.Flags().String("conversation", "", "filter by conversation id")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	listCmd.Flags().String("since", "", "only leads created at or after this RFC3339 time")
	listCmd.Flags().Int("limit", 0, "maximum leads to return")

	updateCmd.Flags().String("status", "", "new status")
	updateCmd.Flags().String("assignee", "", "handler name")
	updateCmd.Flags().String("opp-id", "", "CRM opportunity id")
	updateCmd.Flags().String("note", "", "note recorded in the lead history")
}

func printLeads(w io.Writer, records []leads.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tNAME\tPHONE\tSOURCE\tCREATED")
	for _, l := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Status, l.PriorityCategory, dash(l.Fields.Name), dash(l.Fields.Phone),
			l.SourceDescription, l.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func printStats(w io.Writer, s leads.Stats) {
	fmt.Fprintf(w, "total: %d\nconversion: %.1f%%\nmessages today: %d\n", s.Total, s.ConversionRate, s.MessagesToday)
	statuses := make([]string, 0, len(s.ByStatus))
	for k := range s.ByStatus {
		statuses = append(statuses, string(k))
	}
	sort.Strings(statuses)
	for _, k := range statuses {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.ByStatus[leads.Status(k)])
	}
}

func printLead(w io.Writer, l leads.Lead) {
	fmt.Fprintf(w, "%s  %s  %s\n", l.ID, l.Status, l.PriorityCategory)
	fmt.Fprintf(w, "from: %s (%s)\n", l.SenderLabel, l.SourceDescription)
	if l.Assignee != "" {
		fmt.Fprintf(w, "assignee: %s\n", l.Assignee)
	}
	fmt.Fprintf(w, "message: %s\n", l.RawMessage)
	for _, h := range l.History {
		fmt.Fprintf(w, "  %s  %-10s %s\n", h.Timestamp.Format("2006-01-02 15:04"), h.Action, h.Detail["note"])
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
