package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/workflow"
)

// NewTicketCommand creates the ticket command group.
func NewTicketCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Issue, call and update tickets",
	}
	cmd.AddCommand(
		newTicketCreateCommand(opts),
		newTicketReceptionCommand(opts),
		newTicketNextCommand(opts),
		newTicketStateCommand(opts),
		newTicketStateByPatientCommand(opts),
		newTicketClearMissedCommand(opts),
		newTicketMoveCommand(opts),
		newTicketShowCommand(opts),
		newTicketListCommand(opts),
	)
	return cmd
}

// withApp opens the core for the duration of fn.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(a *app, f *OutputFormatter) error) error {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, newFormatter(opts, cmd))
}

func newTicketCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		req     workflow.CreateRequest
		state   stateValue
		day     dayValue
		counter counterFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a ticket",
		Long: `Issue a ticket in a queue, resolved from --department or --queue.

If the patient already holds an open ticket in the queue today, that ticket
is returned and nothing is created.

Examples:
  qms ticket create --queue 1
  qms ticket create --department 10 --priority 1 --patient BN-0042
  qms ticket create --queue 2 --day 2026-03-03 --patient BN-0042`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.set {
				req.InitialState = &state.state
			}
			req.Day = day.day
			req.Counter = counter.ref(cmd.Flags())
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				res, err := a.svc.CreateTicket(cmd.Context(), req)
				if err != nil {
					return f.Fail("create ticket", err)
				}
				return f.Success(createView(res), formatCreate(res))
			})
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&req.QueueID, "queue", 0, "queue id")
	fs.Int64Var(&req.DepartmentID, "department", 0, "department id (wins over --queue)")
	fs.IntVar(&req.Priority, "priority", 0, "priority level (0 = normal)")
	fs.StringVar(&req.PatientCode, "patient", "", "patient code")
	fs.StringVar(&req.PatientName, "name", "", "patient name")
	fs.IntVar(&req.PatientYOB, "yob", 0, "patient year of birth")
	fs.IntVar(&req.MedOrder, "med-order", 0, "med-order flag")
	fs.StringVar(&req.Remarks, "remarks", "", "free-text remarks")
	fs.Var(&state, "state", "initial state (default wait)")
	fs.Var(&day, "day", "issue for another day (YYYY-MM-DD)")
	counter.register(fs)
	return cmd
}

func newTicketReceptionCommand(opts *RootOptions) *cobra.Command {
	var (
		queueID  int64
		priority int
		patient  string
	)
	cmd := &cobra.Command{
		Use:   "reception",
		Short: "Issue a reception ticket (exam-visit placement)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				res, err := a.svc.CreateReceptionTicket(cmd.Context(), queueID, priority, patient)
				if err != nil {
					return f.Fail("create reception ticket", err)
				}
				return f.Success(createView(res), formatCreate(res))
			})
		},
	}
	cmd.Flags().Int64Var(&queueID, "queue", 0, "queue id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority level (0 = normal)")
	cmd.Flags().StringVar(&patient, "patient", "", "patient code")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newTicketNextCommand(opts *RootOptions) *cobra.Command {
	var (
		queueID  int64
		counter  counterFlags
		computer string
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Call the next waiting ticket to a counter",
		Long: `Move the first waiting ticket in service order to Serving for the counter.
A counter that is already serving a ticket gets that ticket back.

With --computer the counter is the one bound to that workstation, and its
queue is used unless --queue is given.

Examples:
  qms ticket next --queue 1 --counter 3
  qms ticket next --computer RADIO-PC1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if computer == "" && (queueID == 0 || counter.id == 0) {
				return NewExitError(ExitCommandError, "either --computer or both --queue and --counter are required")
			}
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				if computer != "" {
					ct, err := a.svc.CounterByComputerName(cmd.Context(), computer)
					if err != nil {
						return f.Fail("resolve counter", err)
					}
					counter.id, counter.name = ct.ID, ct.Name
					if queueID == 0 {
						queueID = ct.QueueID
					}
				}
				t, found, err := a.svc.AssignNext(cmd.Context(), queueID, workflow.CounterRef{ID: counter.id, Name: counter.name})
				if err != nil {
					return f.Fail("assign next", err)
				}
				if !found {
					return f.Success(map[string]any{"found": false}, "no ticket waiting")
				}
				return f.Success(map[string]any{"found": true, "ticket": t}, formatTicket(t))
			})
		},
	}
	cmd.Flags().Int64Var(&queueID, "queue", 0, "queue id (default the counter's queue with --computer)")
	cmd.Flags().StringVar(&computer, "computer", "", "workstation name of the counter")
	counter.register(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("computer", "counter")
	return cmd
}

func newTicketStateCommand(opts *RootOptions) *cobra.Command {
	var (
		req      workflow.UpdateStateRequest
		state    stateValue
		counter  counterFlags
		medOrder int
	)
	cmd := &cobra.Command{
		Use:   "state <display-text>",
		Short: "Change the state of one of today's tickets",
		Example: `  qms ticket state 0003 --queue 1 --state serving --counter 2
  qms ticket state 0003 --queue 1 --state done`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.DisplayText = args[0]
			req.State = state.state
			req.Counter = counter.ref(cmd.Flags())
			if cmd.Flags().Changed("med-order") {
				req.MedOrder = &medOrder
			}
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				t, err := a.svc.UpdateState(cmd.Context(), req)
				if err != nil {
					return f.Fail("update state", err)
				}
				return f.Success(t, formatTicket(t))
			})
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&req.QueueID, "queue", 0, "queue id")
	fs.Var(&state, "state", "target state (name or code)")
	fs.IntVar(&medOrder, "med-order", 0, "only match tickets with this med-order flag")
	counter.register(fs)
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func newTicketStateByPatientCommand(opts *RootOptions) *cobra.Command {
	var (
		queueID int64
		state   stateValue
		counter counterFlags
		recall  bool
	)
	cmd := &cobra.Command{
		Use:   "state-by-patient <patient-code>",
		Short: "Change the state of every open ticket of a patient",
		Long: `Change the state of a patient's tickets in a queue today. Done tickets are
skipped unless --recall is given and RecallShowDisplay is enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := counter.ref(cmd.Flags())
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				ts, err := a.svc.UpdateStateByPatient(cmd.Context(), queueID, args[0], state.state, ref, recall)
				if err != nil {
					return f.Fail("update state by patient", err)
				}
				lines := make([]string, len(ts))
				for i, t := range ts {
					lines[i] = formatTicket(t)
				}
				return f.Success(ts, strings.Join(lines, "\n"))
			})
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&queueID, "queue", 0, "queue id")
	fs.Var(&state, "state", "target state (name or code)")
	fs.BoolVar(&recall, "recall", false, "include Done tickets when RecallShowDisplay is enabled")
	counter.register(fs)
	_ = cmd.MarkFlagRequired("queue")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func newTicketClearMissedCommand(opts *RootOptions) *cobra.Command {
	var queueID int64
	cmd := &cobra.Command{
		Use:   "clear-missed",
		Short: "Return today's missed tickets to the waiting line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				n, err := a.svc.ClearMissed(cmd.Context(), queueID)
				if err != nil {
					return f.Fail("clear missed", err)
				}
				return f.Success(map[string]int{"cleared": n}, fmt.Sprintf("✓ %d missed tickets returned to wait", n))
			})
		},
	}
	cmd.Flags().Int64Var(&queueID, "queue", 0, "queue id")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newTicketMoveCommand(opts *RootOptions) *cobra.Command {
	var req workflow.MoveRequest
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Copy a ticket into another queue",
		Long: `Copy one of today's tickets into another queue as a new waiting ticket that
keeps its number, order and patient. The source ticket is not changed.

Example:
  qms ticket move --from 1 --order 0004 --patient BN-0042 --to 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				res, err := a.svc.MoveTicket(cmd.Context(), req)
				if err != nil {
					return f.Fail("move ticket", err)
				}
				return f.Success(createView(res), formatCreate(res))
			})
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&req.FromQueueID, "from", 0, "source queue id")
	fs.StringVar(&req.Order, "order", "", "order key of the source ticket")
	fs.Int64Var(&req.ToQueueID, "to", 0, "destination queue id")
	fs.StringVar(&req.PatientCode, "patient", "", "patient code of the source ticket")
	for _, name := range []string{"from", "order", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTicketShowCommand(opts *RootOptions) *cobra.Command {
	var (
		queueID int64
		text    string
		patient string
		day     dayValue
	)
	cmd := &cobra.Command{
		Use:   "show [ticket-id]",
		Short: "Look up tickets by id, display text or patient",
		Example: `  qms ticket show 01960f3e-8c55-7c1a-9f0e-2a51b6a3c1d4
  qms ticket show --queue 1 --text 0003
  qms ticket show --queue 1 --patient BN-0042 --day 2026-03-02`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				ctx := cmd.Context()
				d := day.day
				if d == "" {
					d = a.svc.Today()
				}
				var (
					ts  []model.Ticket
					err error
				)
				switch {
				case len(args) == 1:
					var t model.Ticket
					t, err = a.svc.Ticket(ctx, args[0])
					ts = []model.Ticket{t}
				case queueID > 0 && text != "":
					var t model.Ticket
					t, err = a.svc.TicketByDisplayText(ctx, queueID, text, d)
					ts = []model.Ticket{t}
				case queueID > 0 && patient != "":
					ts, err = a.svc.TicketsForPatient(ctx, queueID, patient, d)
				default:
					return f.Fail("show ticket", model.InvalidArgument("show ticket",
						"give a ticket id, or --queue with --text or --patient"))
				}
				if err != nil {
					return f.Fail("show ticket", err)
				}
				lines := make([]string, len(ts))
				for i, t := range ts {
					lines[i] = formatTicket(t)
				}
				return f.Success(ts, strings.Join(lines, "\n"))
			})
		},
	}
	fs := cmd.Flags()
	fs.Int64Var(&queueID, "queue", 0, "queue id")
	fs.StringVar(&text, "text", "", "display text")
	fs.StringVar(&patient, "patient", "", "patient code")
	fs.Var(&day, "day", "day to search (default today)")
	return cmd
}

func newTicketListCommand(opts *RootOptions) *cobra.Command {
	var (
		queueID int64
		take    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List today's cached tickets of a queue in service order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app, f *OutputFormatter) error {
				ts := a.svc.CachedTickets(queueID, take)
				if len(ts) == 0 {
					return f.Success(ts, "no tickets")
				}
				lines := make([]string, len(ts))
				for i, t := range ts {
					lines[i] = formatTicket(t)
				}
				return f.Success(ts, strings.Join(lines, "\n"))
			})
		},
	}
	cmd.Flags().Int64Var(&queueID, "queue", 0, "queue id")
	cmd.Flags().IntVar(&take, "take", 0, "maximum number of tickets (0 = all)")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

type createResponse struct {
	Outcome string       `json:"outcome"`
	Ticket  model.Ticket `json:"ticket"`
	Queue   model.Queue  `json:"queue"`
}

func createView(res workflow.CreateResult) createResponse {
	return createResponse{Outcome: res.Outcome.String(), Ticket: res.Ticket, Queue: res.Queue}
}

func formatCreate(res workflow.CreateResult) string {
	mark := "✓"
	if res.Outcome == workflow.AlreadyExists {
		mark = "="
	}
	return fmt.Sprintf("%s %s %s", mark, res.Outcome, formatTicket(res.Ticket))
}

// formatTicket is the one-line text form of a ticket.
func formatTicket(t model.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-9s queue=%d seq=%d order=%s", t.DisplayText, t.State, t.QueueID, t.Sequence, t.Order)
	if t.IsPriority() {
		fmt.Fprintf(&b, " priority=%d", t.Priority)
	}
	if !t.EstimateTime.IsZero() {
		fmt.Fprintf(&b, " eta=%s", t.EstimateTime.Format("15:04"))
	}
	if t.CounterName != "" {
		fmt.Fprintf(&b, " counter=%q", t.CounterName)
	}
	if t.PatientCode != "" {
		fmt.Fprintf(&b, " patient=%s", t.PatientCode)
	}
	fmt.Fprintf(&b, " id=%s", t.ID)
	return b.String()
}
