package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/outreach/internal/api"
	"github.com/matheus3301/outreach/internal/client"
	"github.com/matheus3301/outreach/internal/lock"
	"github.com/matheus3301/outreach/internal/state"
	"github.com/matheus3301/outreach/internal/workspace"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := workspace.Resolve(*workspaceFlag)
	if err := workspace.ValidateName(name); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := client.New(workspace.SocketPath(name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for workspace %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// watch runs until interrupted; everything else gets a deadline.
	if args[0] == "watch" {
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		cmdWatch(c, prefix, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := output{json: *jsonFlag}
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, out, name)
	case "stats":
		cmdStats(ctx, c, out)
	case "accounts":
		cmdAccounts(ctx, c, out)
	case "templates":
		cmdTemplates(ctx, c, out)
	case "prompts":
		cmdPrompts(ctx, c, out)
	case "campaigns":
		cmdCampaigns(ctx, c, out)
	case "messages":
		cmdMessages(ctx, c, out, args[1:])
	case "campaign":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: outreachctl campaign <start|pause|resume|cancel> <campaign-id>")
			os.Exit(1)
		}
		cmdTransition(ctx, c, out, args[1], args[2])
	case "enqueue":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: outreachctl enqueue <campaign-id> <name[:company]>...")
			os.Exit(1)
		}
		cmdEnqueue(ctx, c, out, args[1], args[2:])
	case "send-now":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: outreachctl send-now <campaign-id> [name[:company]]")
			os.Exit(1)
		}
		var r state.Recipient
		if len(args) > 2 {
			r = parseRecipient(args[2])
		}
		cmdSendNow(ctx, c, out, args[1], r)
	case "requeue":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: outreachctl requeue <message-id>")
			os.Exit(1)
		}
		cmdRequeue(ctx, c, out, args[1])
	case "reset-daily":
		n, err := c.ResetDailyCounts(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Reset daily counters on %d account(s).\n", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: outreachctl [--workspace <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                              Show daemon status")
	fmt.Fprintln(os.Stderr, "  stats                               Show dashboard figures")
	fmt.Fprintln(os.Stderr, "  accounts                            List sending accounts")
	fmt.Fprintln(os.Stderr, "  templates                           List copy templates")
	fmt.Fprintln(os.Stderr, "  prompts                             List system prompts")
	fmt.Fprintln(os.Stderr, "  campaigns                           List campaigns")
	fmt.Fprintln(os.Stderr, "  messages [-campaign id] [-status s] [-limit n]")
	fmt.Fprintln(os.Stderr, "                                      List messages")
	fmt.Fprintln(os.Stderr, "  campaign <action> <id>              start, pause, resume or cancel a campaign")
	fmt.Fprintln(os.Stderr, "  enqueue <id> <name[:company]>...    Queue recipients on a campaign")
	fmt.Fprintln(os.Stderr, "  send-now <id> [name[:company]]      Send one message immediately")
	fmt.Fprintln(os.Stderr, "  requeue <message-id>                Queue a failed message again")
	fmt.Fprintln(os.Stderr, "  reset-daily                         Zero every account's daily counter")
	fmt.Fprintln(os.Stderr, "  watch [prefix]                      Stream events")
}

type output struct {
	json bool
}

// unreachable explains a failed call using the workspace lock: a recorded
// PID means a daemon owns the workspace but did not answer.
func unreachable(name, dir string, err error) error {
	if grpcstatus.Code(err) != codes.Unavailable {
		return err
	}
	if pid := lock.HolderPID(dir); pid > 0 {
		return fmt.Errorf("daemon (pid %d) holds workspace %q but is not answering: %w", pid, name, err)
	}
	return fmt.Errorf("no daemon running for workspace %q (start outreachd -workspace %s)", name, name)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func parseRecipient(s string) state.Recipient {
	name, company, _ := strings.Cut(s, ":")
	return state.Recipient{Name: strings.TrimSpace(name), Company: strings.TrimSpace(company)}
}

func cmdStatus(ctx context.Context, c *client.Client, out output, name string) {
	resp, err := c.Status(ctx)
	if err != nil {
		fail(unreachable(name, workspace.Dir(name), err))
	}
	if out.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Workspace: %s\n", resp.Workspace)
	fmt.Printf("Phase:     %s\n", resp.Phase)
	fmt.Printf("Uptime:    %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("In flight: %d\n", resp.InFlight)
	if resp.EventsDropped > 0 {
		fmt.Printf("Dropped:   %d events\n", resp.EventsDropped)
	}
}

func cmdStats(ctx context.Context, c *client.Client, out output) {
	st, err := c.Stats(ctx)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(st)
		return
	}
	fmt.Printf("Active accounts:  %d\n", st.ActiveAccounts)
	fmt.Printf("Active campaigns: %d\n", st.ActiveCampaigns)
	fmt.Printf("Queued messages:  %d\n", st.QueuedMessages)
	fmt.Printf("Sent today:       %d\n", st.SentToday)

	statuses := make([]string, 0, len(st.ByStatus))
	for s := range st.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	fmt.Println()
	for _, s := range statuses {
		fmt.Printf("  %-8s %d\n", s, st.ByStatus[state.MessageStatus(s)])
	}
	fmt.Println()
	for _, a := range st.Accounts {
		fmt.Printf("  @%-20s %d/%d\n", a.Handle, a.SentToday, a.DailyLimit)
	}
}

func cmdAccounts(ctx context.Context, c *client.Client, out output) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(accounts)
		return
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return
	}
	for _, a := range accounts {
		quiet := ""
		if a.Settings.RespectQuietHours {
			quiet = " quiet-hours"
		}
		fmt.Printf("%-20s @%-20s %-13s %3d/%-3d delay %ds%s\n",
			a.ID, a.Handle, a.Status, a.SentToday, a.DailyLimit, a.Settings.DelaySeconds, quiet)
	}
}

func cmdTemplates(ctx context.Context, c *client.Client, out output) {
	templates, err := c.Templates(ctx)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(templates)
		return
	}
	for _, t := range templates {
		fmt.Printf("%-20s %-32s%s\n", t.ID, t.Title, flags(t.IsActive, t.IsDefault))
	}
}

func cmdPrompts(ctx context.Context, c *client.Client, out output) {
	prompts, err := c.Prompts(ctx)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(prompts)
		return
	}
	for _, p := range prompts {
		fmt.Printf("%-20s %-32s%s\n", p.ID, p.Title, flags(p.IsActive, p.IsDefault))
	}
}

func flags(active, def bool) string {
	var parts []string
	if active {
		parts = append(parts, "active")
	}
	if def {
		parts = append(parts, "default")
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ",") + "]"
}

func cmdCampaigns(ctx context.Context, c *client.Client, out output) {
	campaigns, err := c.Campaigns(ctx)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(campaigns)
		return
	}
	if len(campaigns) == 0 {
		fmt.Println("No campaigns.")
		return
	}
	for _, cmp := range campaigns {
		fmt.Printf("%-20s %-9s sent %d/%d queued %d failed %d  %s\n",
			cmp.ID, cmp.Status, cmp.SentCount, cmp.TargetCount, cmp.QueuedCount, cmp.FailedCount, cmp.Name)
	}
}

func cmdMessages(ctx context.Context, c *client.Client, out output, args []string) {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	campaign := fs.String("campaign", "", "only messages of this campaign")
	status := fs.String("status", "", "only messages with this status")
	limit := fs.Int("limit", 20, "show at most this many of the most recent matches (0 = all)")
	_ = fs.Parse(args)

	resp, err := c.Messages(ctx, api.ListMessagesRequest{
		CampaignID: *campaign,
		Status:     state.MessageStatus(*status),
		Limit:      *limit,
	})
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(resp)
		return
	}
	for _, m := range resp.Items {
		line := fmt.Sprintf("%-20s %-8s %-20s %s (%s)", m.ID, m.Status, m.AccountID, m.RecipientName, m.RecipientCompany)
		if m.ErrorMessage != "" {
			line += " - " + m.ErrorMessage
		}
		fmt.Println(line)
	}
	fmt.Printf("%d of %d message(s)\n", len(resp.Items), resp.Total)
}

func cmdTransition(ctx context.Context, c *client.Client, out output, action, id string) {
	resp, err := c.Transition(ctx, id, action)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(resp)
		return
	}
	if !resp.Applied {
		fmt.Printf("Campaign %s is %s; %s does not apply.\n", id, resp.Campaign.Status, action)
		return
	}
	fmt.Printf("Campaign %s is now %s.\n", id, resp.Campaign.Status)
}

func cmdEnqueue(ctx context.Context, c *client.Client, out output, id string, args []string) {
	recipients := make([]state.Recipient, 0, len(args))
	for _, s := range args {
		recipients = append(recipients, parseRecipient(s))
	}
	msgs, err := c.Enqueue(ctx, id, recipients)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		fmt.Printf("Queued %s for %s via %s\n", m.ID, m.RecipientName, m.AccountID)
	}
}

func cmdSendNow(ctx context.Context, c *client.Client, out output, id string, r state.Recipient) {
	m, err := c.SendNow(ctx, id, r)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(m)
		return
	}
	fmt.Printf("Sending %s to %s via %s\n", m.ID, m.RecipientName, m.AccountID)
}

func cmdRequeue(ctx context.Context, c *client.Client, out output, id string) {
	m, err := c.Requeue(ctx, id)
	if err != nil {
		fail(err)
	}
	if out.json {
		outputJSON(m)
		return
	}
	fmt.Printf("Message %s is %s again.\n", m.ID, m.Status)
}

func cmdWatch(c *client.Client, prefix string, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := c.Watch(ctx, prefix, func(evt api.Event) error {
		if jsonOut {
			outputJSON(evt)
			return nil
		}
		payload, _ := json.Marshal(evt.Payload)
		fmt.Printf("%s %-24s %s\n", evt.Timestamp.Format(time.TimeOnly), evt.Kind, payload)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fail(err)
	}
}
