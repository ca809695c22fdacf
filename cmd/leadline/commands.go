package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/importer"
	"leadline/internal/repo"
	"leadline/internal/segment"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "contacts", Short: "Manage contacts"}
	cmd.AddCommand(contactsListCmd())
	cmd.AddCommand(contactsShowCmd())
	cmd.AddCommand(contactsCreateCmd())
	cmd.AddCommand(contactsSummaryCmd())
	cmd.AddCommand(contactsBulkStateCmd())
	cmd.AddCommand(contactsClaimCmd())
	cmd.AddCommand(contactsDisposeCmd())
	cmd.AddCommand(contactsCallbacksCmd())
	cmd.AddCommand(contactsReviveCmd())
	return cmd
}

func renderContacts(items []domain.Contact) {
	tw := newTable("ID", "Company", "Segment", "State", "Assigned", "No answer", "Call later")
	for _, c := range items {
		tw.AppendRow(table.Row{c.ID, c.CompanyName, c.SegmentKey, c.State, deref(c.AssignedToID), c.NoAnswerCount, deref(c.CallLaterAt)})
	}
	tw.Render()
}

func contactsListCmd() *cobra.Command {
	var f repo.ContactFilters
	var page, take int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ListContacts(ctx, f, page, take, currentActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderContacts(res.Items)
				fmt.Printf("page %d, %d of %d\n", res.Page, len(res.Items), res.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.State, "state", "", "state filter")
	cmd.Flags().StringVar(&f.SegmentKey, "segment", "", "segment filter (key or letter)")
	cmd.Flags().StringVar(&f.AssignedToID, "assigned-to", "", "assignee filter")
	cmd.Flags().StringVar(&f.Query, "q", "", "search company, name, email or city")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&take, "take", engine.DefaultPageSize, "page size")
	return cmd
}

func contactsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetContact(ctx, args[0], currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func contactsCreateCmd() *cobra.Command {
	var c domain.Contact
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateContact(ctx, c, currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&c.CompanyName, "company", "", "company name")
	cmd.Flags().StringVar(&c.SegmentKey, "segment", "", "segment key or letter")
	cmd.Flags().StringVar(&c.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&c.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&c.Email, "email", "", "email")
	cmd.Flags().StringVar(&c.PhoneWork, "phone", "", "work phone")
	cmd.Flags().StringVar(&c.City, "city", "", "city")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func contactsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count contacts per segment and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Summary(ctx, currentActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Segment", "State", "Count")
				for _, it := range items {
					tw.AppendRow(table.Row{it.SegmentKey, it.State, it.Count})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func contactsBulkStateCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "bulk-state <id>...",
		Short: "Set the state of several contacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.BulkSetState(ctx, args, state, currentActor())
				if err != nil {
					return err
				}
				fmt.Printf("updated %d contacts\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "target state")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func contactsClaimCmd() *cobra.Command {
	var segmentKey string
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the next contact for the actor",
		Long:  "Claims from --segment, or from the segment picked for the current calling window when omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actorID := viper.GetString("actor-id")
				var res engine.ClaimResult
				var err error
				if segmentKey == "" {
					res, err = e.ClaimForNow(ctx, actorID)
				} else {
					res, err = e.ClaimNext(ctx, actorID, segmentKey)
				}
				if err != nil {
					return err
				}
				if res.Contact == nil {
					fmt.Println("no contact available")
					return nil
				}
				return printJSONOrTable(res.Contact)
			})
		},
	}
	cmd.Flags().StringVar(&segmentKey, "segment", "", "segment key or letter")
	return cmd
}

func contactsDisposeCmd() *cobra.Command {
	var in engine.DispositionInput
	cmd := &cobra.Command{
		Use:   "dispose <id>",
		Short: "Record a call outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ContactID = args[0]
			in.AssociateID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ApplyDisposition(ctx, in)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Action, "action", "", "NO_ANSWER, CALL_LATER, BOOKED, REFUSED or SKIP")
	cmd.Flags().BoolVar(&in.Skip, "skip", false, "skip the contact")
	cmd.Flags().StringVar(&in.Note, "note", "", "call note")
	cmd.Flags().StringVar(&in.CallLaterAt, "call-later-at", "", "callback time (RFC3339)")
	cmd.Flags().IntVar(&in.DurationSec, "duration", 0, "handling time in seconds")
	cmd.Flags().StringVar(&in.SessionID, "session", "", "session id")
	return cmd
}

func contactsCallbacksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callbacks",
		Short: "List the actor's scheduled callbacks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Callbacks(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderContacts(items)
				return nil
			})
		},
	}
}

func contactsReviveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revive",
		Short: "Return due NO_ANSWER contacts to NEW",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.Revive(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Printf("revived %d contacts\n", n)
				return nil
			})
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Calling sessions"}
	var segmentKey string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session for the actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.StartSession(ctx, viper.GetString("actor-id"), segmentKey)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	start.Flags().StringVar(&segmentKey, "segment", "", "segment focus")

	var duration int
	end := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.EndSession(ctx, args[0], duration, currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	end.Flags().IntVar(&duration, "duration", 0, "session length in seconds")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the actor's sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListSessions(ctx, viper.GetString("actor-id"), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Segment", "Started", "Ended")
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.SegmentKey, s.StartedAt, deref(s.EndedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "max sessions")
	cmd.AddCommand(start, end, list)
	return cmd
}

func segmentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "segments", Short: "Segment catalog and picker"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := segment.Catalog()
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable("Short", "Key", "Label")
			for _, m := range items {
				tw.AppendRow(table.Row{m.Short, m.Key, m.Label})
			}
			tw.Render()
			return nil
		},
	}
	var at string
	pick := &cobra.Command{
		Use:   "pick",
		Short: "Pick a segment for a point in time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t := e.Time()
				if at != "" {
					parsed, err := time.Parse(time.RFC3339, at)
					if err != nil {
						return fmt.Errorf("--at: %w", err)
					}
					t = parsed
				}
				p, err := e.Picker()
				if err != nil {
					return err
				}
				w, inWindow := p.WindowAt(t)
				key, ok, err := e.PickSegment(t)
				if err != nil {
					return err
				}
				if !inWindow {
					fmt.Println("outside calling windows")
					return nil
				}
				if !ok {
					fmt.Printf("window %s has no weighted segments\n", w.ID)
					return nil
				}
				fmt.Printf("window %s pool [%s] picked %s\n", w.ID, strings.Join(p.Pool(t), " "), key)
				return nil
			})
		},
	}
	pick.Flags().StringVar(&at, "at", "", "time to pick for (RFC3339, default now)")
	cmd.AddCommand(list, pick)
	return cmd
}

func salesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sales", Short: "Sales of booked contacts"}
	var contactID, userID, amount string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or update a sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := engine.ParseAmount(amount)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.RecordSale(ctx, engine.SaleInput{ContactID: contactID, AssociateID: userID, Amount: amt}, currentActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	set.Flags().StringVar(&contactID, "contact", "", "contact id")
	set.Flags().StringVar(&userID, "user", "", "associate credited with the sale")
	set.Flags().StringVar(&amount, "amount", "", "amount ('.' or ',' decimal separator)")

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sales",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListSales(ctx, filter, currentActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Contact", "User", "Amount", "Updated")
				for _, s := range items {
					amount := ""
					if s.Amount != nil {
						amount = fmt.Sprintf("%.2f", *s.Amount)
					}
					tw.AppendRow(table.Row{s.ID, s.ContactID, s.AssociateID, amount, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&filter, "user", "", "associate filter")
	cmd.AddCommand(set, list)
	return cmd
}

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notes", Short: "Booking notes"}
	var content string
	add := &cobra.Command{
		Use:   "add <contact-id>",
		Short: "Add a note to a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.AddNote(ctx, args[0], viper.GetString("actor-id"), content)
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	add.Flags().StringVar(&content, "content", "", "note text")
	list := &cobra.Command{
		Use:   "list <contact-id>",
		Short: "List notes of a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListNotes(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Created", "Author", "Content")
				for _, n := range items {
					tw.AppendRow(table.Row{n.CreatedAt, n.AuthorID, n.Content})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func importCmd() *cobra.Command {
	var src, segmentKey string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import contacts from a CSV file or s3://bucket/key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if segmentKey != "" {
				m, ok := segment.Lookup(strings.ToUpper(strings.TrimSpace(segmentKey)))
				if !ok {
					return fmt.Errorf("unknown segment %q", segmentKey)
				}
				segmentKey = m.Key
			}
			opener := &importer.Opener{}
			rc, err := opener.Open(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer rc.Close()
			parsed, err := importer.Parse(rc, segmentKey)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inserted, err := e.ImportContacts(ctx, parsed.Rows, src, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{
					"read":     parsed.Read,
					"inserted": inserted,
					"skipped":  parsed.Skipped + len(parsed.Rows) - inserted,
				})
			})
		},
	}
	cmd.Flags().StringVar(&src, "file", "", "CSV path or s3://bucket/key")
	cmd.Flags().StringVar(&segmentKey, "segment", "", "segment for rows without one")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func statsCmd() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Associate activity since the start of the business day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				from = t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AssociateStats(ctx, args[0], from, currentActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				tw := newTable("User", "Since", "Dials", "Talk (s)", "Good", "Bookings", "Session (s)")
				tw.AppendRow(table.Row{s.AssociateID, s.Since, s.Dials, s.TalkSeconds, s.GoodConversations, s.Bookings, s.SessionSeconds})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "start time (RFC3339)")
	return cmd
}
