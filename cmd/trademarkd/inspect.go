package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-trademark-backend/internal/catalog"
	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/search"
	"github.com/tbourn/go-trademark-backend/internal/services"
	"github.com/tbourn/go-trademark-backend/internal/sysutil"
	"github.com/tbourn/go-trademark-backend/internal/utils"
)

var titleCase = cases.Title(language.BrazilianPortuguese)

// displayName renders registry upper-case names as title case.
func displayName(s string) string {
	return titleCase.String(strings.ToLower(strings.TrimSpace(s)))
}

func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	if sysutil.IsTruthy(os.Getenv("CLICOLOR_FORCE")) {
		tw.SetStyle(table.StyleColoredBright)
	}
	return tw
}

func searchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <case-number>",
		Short: "Look a case up in the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.openRegistry()
			if err != nil {
				return err
			}
			ps := services.NewProcessService(nil, reg, nil, nil)
			snap, err := ps.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func renderSnapshot(out io.Writer, snap *domain.CaseSnapshot) {
	fmt.Fprintf(out, "%s  %s (classe %s)\n", snap.Number, displayName(snap.Brand), snap.Class)
	fmt.Fprintf(out, "Titular: %s\nSituação: %s\n", displayName(snap.Owner), snap.Status)

	tw := newTable(out)
	tw.AppendHeader(table.Row{"Code", "Date", "Status", "Action", "Description"})
	for _, d := range snap.Dispatches {
		action := ""
		if domain.RequiresAction(d) {
			action = "required"
		}
		tw.AppendRow(table.Row{d.Code, d.Date, d.Status.Label(), action, d.Description})
	}
	tw.Render()
}

func attentionCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "attention",
		Short: "List a user's processes that need attention",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			kv, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			ps := services.NewProcessService(kv, nil, nil, nil)
			list, err := ps.AttentionList(cmd.Context(), user)
			if err != nil {
				return err
			}
			renderAttention(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "demo-user", "user id whose processes are inspected")
	return cmd
}

func renderAttention(out io.Writer, list []domain.Process, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(out, "Nothing needs attention.")
		return
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"Case", "Brand", "Class", "Reason", "Next deadline"})
	for _, p := range list {
		tw.AppendRow(table.Row{p.CaseNumber, displayName(p.BrandName), p.NiceClass, attentionReason(p, now), nextDeadline(p, now)})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(list)})
	tw.Render()
}

func attentionReason(p domain.Process, now time.Time) string {
	var reasons []string
	for _, d := range p.Dispatches {
		if domain.RequiresAction(d) {
			reasons = append(reasons, "dispatch "+d.Code)
		}
	}
	for _, dl := range p.Deadlines {
		if domain.IsUrgent(dl, now) {
			reasons = append(reasons, string(domain.UrgencyOf(dl, now))+" deadline")
			break
		}
	}
	return strings.Join(reasons, ", ")
}

func nextDeadline(p domain.Process, now time.Time) string {
	for _, dl := range domain.SortDeadlines(p.Deadlines) {
		if !dl.IsCompleted {
			return fmt.Sprintf("%s %s (%s)", dl.Date.Format(time.DateOnly), dl.Title, domain.UrgencyOf(dl, now))
		}
	}
	return "-"
}

const maxArticleResults = 20

func articlesCmd(a *app) *cobra.Command {
	var k, read int
	cmd := &cobra.Command{
		Use:   "articles [query]",
		Short: "Search the educational articles, or print one with --read",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			if read > 0 {
				art, ok := cat.Article(read)
				if !ok {
					return fmt.Errorf("article %d not found", read)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", art.Title, search.PlainText(art.Content))
				return nil
			}
			if len(args) == 0 {
				return errors.New("a query or --read is required")
			}
			renderResults(cmd.OutOrStdout(), cat.ArticleIndex().TopDocs(strings.Join(args, " "), utils.Clamp(k, 1, maxArticleResults)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 5, "maximum number of articles")
	cmd.Flags().IntVar(&read, "read", 0, "print the article with this id as plain text")
	return cmd
}

func renderResults(out io.Writer, res []search.Result) {
	if len(res) == 0 {
		fmt.Fprintln(out, "No matching articles.")
		return
	}
	tw := newTable(out)
	tw.AppendHeader(table.Row{"#", "Title", "Score", "Snippet"})
	for _, r := range res {
		snippet := r.Snippet
		if rs := []rune(snippet); len(rs) > 80 {
			snippet = string(rs[:79]) + "…"
		}
		tw.AppendRow(table.Row{r.DocID, r.Title, fmt.Sprintf("%.2f", r.Score), snippet})
	}
	tw.Render()
}
