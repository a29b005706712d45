// Package orchestrator runs the mission loop: one cooperative task that
// refreshes telemetry, enforces safety, asks the decision agent for the next
// action and dispatches commands one at a time, driving the mission state
// machine from the outcomes.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mcp-pilot/internal/agent"
	"mcp-pilot/internal/logger"
	"mcp-pilot/internal/mcp"
	"mcp-pilot/internal/metrics"
	"mcp-pilot/internal/mission"
	"mcp-pilot/internal/safety"
	"mcp-pilot/internal/telemetry"
)

// Termination causes reported with the final state.
const (
	CauseCompleted         = "mission completed"
	CauseOperatorAbort     = "operator abort"
	CauseDecisionTimeout   = "decision timeout"
	CauseProtocolRejected  = "protocol rejected"
	CauseProtocolError     = "protocol error"
	CauseIllegalTransition = "illegal state transition"
)

// Client is the slice of the protocol client the loop needs. Session
// open/close stays with the caller, which owns the client's lifetime.
type Client interface {
	Execute(ctx context.Context, req mcp.ExecuteRequest) (mcp.ExecuteResult, error)
	AwaitCompletion(ctx context.Context, correlationID string) (string, error)
}

type Config struct {
	MissionID string
	Objective string

	PollInterval    time.Duration
	PollTimeout     time.Duration
	DecisionTimeout time.Duration
	CommandTimeout  time.Duration
	AbortTimeout    time.Duration

	MaxDecisionFailures int
	CommandRetryCeiling int
}

type Orchestrator struct {
	cfg     Config
	client  Client
	cache   *telemetry.Cache
	monitor *safety.Monitor
	machine *mission.Machine
	agent   agent.Agent

	decisionFailures int // consecutive
	commandRetries   int // consecutive
	lastError        string

	// Set when a safety override completed without advancing the lifecycle;
	// the next cycle's violation is then unrecoverable.
	overrideStalled bool

	mm *metrics.MissionMetrics
}

func New(cfg Config, client Client, cache *telemetry.Cache, monitor *safety.Monitor, ag agent.Agent) *Orchestrator {
	if cfg.MissionID == "" {
		cfg.MissionID = uuid.New().String()[:8]
	}
	return &Orchestrator{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		monitor: monitor,
		machine: mission.NewMachine(),
		agent:   ag,
		mm: &metrics.MissionMetrics{
			MissionID: cfg.MissionID,
			Objective: cfg.Objective,
		},
	}
}

func (o *Orchestrator) MissionID() string { return o.cfg.MissionID }

// State is safe to read from the operator console while Run is active.
func (o *Orchestrator) State() mission.State { return o.machine.State() }

// Run drives cycles until the mission reaches a terminal state or ctx is
// cancelled. The returned metrics always carry the final state and cause.
func (o *Orchestrator) Run(ctx context.Context) (*metrics.MissionMetrics, error) {
	o.mm.Start = time.Now()
	defer func() {
		o.mm.End = time.Now()
		o.mm.Finalize()
		o.mm.FinalState = o.machine.State().String()
	}()

	logf("[orchestrator] mission %s starting: %q", o.cfg.MissionID, o.cfg.Objective)
	o.transition(mission.EventSessionOpened)

	for !o.machine.State().Terminal() {
		if ctx.Err() != nil {
			o.abort()
			break
		}
		o.mm.Cycles++
		o.cycle(ctx)
		if o.machine.State().Terminal() {
			break
		}
		select {
		case <-ctx.Done():
			o.abort()
		case <-time.After(o.cfg.PollInterval):
		}
	}

	final := o.machine.State()
	if final == mission.StateCompleted && o.mm.Cause == "" {
		o.mm.Cause = CauseCompleted
	}
	logf("[orchestrator] mission %s finished: %s (%s) after %d cycles",
		o.cfg.MissionID, final, o.mm.Cause, o.mm.Cycles)

	if final != mission.StateCompleted {
		return o.mm, errors.New(o.mm.Cause)
	}
	return o.mm, nil
}

// cycle is one iteration: refresh, safety, decision, dispatch. Telemetry is
// always refreshed before the decision step, and the safety check is inlined
// so it can never be starved by a slow agent.
func (o *Orchestrator) cycle(ctx context.Context) {
	rctx, rcancel := context.WithTimeout(ctx, o.cfg.PollTimeout)
	if err := o.cache.Refresh(rctx); err != nil {
		logf("[orchestrator] telemetry refresh failed (staleness %d): %v", o.cache.Staleness(), err)
	}
	rcancel()
	if ctx.Err() != nil {
		return
	}

	v, have := o.cache.Latest()

	if viol := o.evaluate(v, have); viol != nil {
		o.noteViolation(viol)
		// Unrecoverable: no snapshot has ever arrived to recover with, or
		// the failsafe already ran to completion without moving the
		// lifecycle. Re-dispatching the override cannot help.
		if !have || o.overrideStalled {
			logf("[orchestrator] violation is unrecoverable, aborting")
			o.transition(mission.EventSafetyAbort)
			return
		}
		o.dispatch(ctx, o.monitor.Override(v, have), viol)
		return
	}
	o.overrideStalled = false

	act, err := o.decide(ctx, v, have)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.decisionFailures++
		o.lastError = err.Error()
		logf("[orchestrator] decision failed (%d/%d consecutive): %v",
			o.decisionFailures, o.cfg.MaxDecisionFailures, err)
		if o.decisionFailures >= o.cfg.MaxDecisionFailures {
			o.fail(CauseDecisionTimeout)
			return
		}
		act = mission.Loiter() // default for this cycle; never block the next refresh
	} else {
		o.decisionFailures = 0
		o.lastError = ""
	}

	o.dispatch(ctx, act, nil)
}

func (o *Orchestrator) evaluate(v telemetry.Vehicle, have bool) *safety.Violation {
	if !have {
		// No snapshot yet; only the link can be judged.
		return o.monitor.StaleExceeded(o.cache.Staleness())
	}
	return o.monitor.Evaluate(v, o.cache.Staleness())
}

func (o *Orchestrator) decide(ctx context.Context, v telemetry.Vehicle, have bool) (mission.Action, error) {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.DecisionTimeout)
	defer cancel()
	return o.agent.NextAction(dctx, agent.Observation{
		Objective:     o.cfg.Objective,
		State:         o.machine.State(),
		Vehicle:       v,
		HaveTelemetry: have,
		LastError:     o.lastError,
	})
}

// dispatch issues one command and drives the state machine from its outcome.
// viol is non-nil when the action is a safety override; overrides are never
// preempted again.
func (o *Orchestrator) dispatch(ctx context.Context, act mission.Action, viol *safety.Violation) {
	overridden := viol != nil
	cmd := mission.Command{
		CorrelationID: uuid.New().String(),
		Action:        act,
		IssuedAt:      time.Now(),
		State:         mission.CommandPending,
	}
	cm := metrics.CommandMetrics{
		CorrelationID: cmd.CorrelationID,
		Action:        act.String(),
		Overridden:    overridden,
		Start:         cmd.IssuedAt,
	}
	defer func() {
		cm.End = time.Now()
		cm.Finalize()
		cm.Outcome = cmd.State.String()
		o.mm.Commands = append(o.mm.Commands, cm)
	}()

	logf("[orchestrator] dispatching %s (correlation %s, override=%v)", act, cmd.CorrelationID, overridden)
	startState := o.machine.State()

	execCtx, ecancel := context.WithTimeout(ctx, o.cfg.CommandTimeout)
	_, err := o.client.Execute(execCtx, translate(act, cmd.CorrelationID))
	ecancel()
	if err != nil {
		cmd.State = mission.CommandFailed
		cm.Err = err.Error()
		if ctx.Err() != nil {
			return // cancellation is handled by Run
		}
		o.commandSetback(overridden, viol, rejectionCause(err), err)
		return
	}
	cmd.State = mission.CommandAcked

	// Land and RTL move the lifecycle at dispatch, not completion.
	if act.Kind == mission.ActionLand || act.Kind == mission.ActionReturnToLaunch {
		if st := o.machine.State(); st == mission.StateArmed || st == mission.StateInFlight {
			o.transition(mission.EventLandingStarted)
		}
	}

	outcome, preempt, err := o.await(ctx, cmd.CorrelationID, !overridden)
	if preempt != nil {
		// Safety wins: the in-flight wait was cancelled, issue the override now.
		cmd.State = mission.CommandTimedOut
		cm.Err = preempt.Error()
		o.noteViolation(preempt)
		v, have := o.cache.Latest()
		o.dispatch(ctx, o.monitor.Override(v, have), preempt)
		return
	}
	if err != nil {
		cm.Err = err.Error()
		if ctx.Err() != nil {
			cmd.State = mission.CommandTimedOut
			return
		}
		if errors.Is(err, mcp.ErrTimeout) {
			cmd.State = mission.CommandTimedOut
		} else {
			cmd.State = mission.CommandFailed
		}
		o.commandSetback(overridden, viol, CauseProtocolError, err)
		return
	}

	switch outcome {
	case mcp.StateCompleted:
		cmd.State = mission.CommandCompleted
		o.commandRetries = 0
		o.lastError = ""
		o.onCompleted(act)
		if overridden {
			o.overrideStalled = o.machine.State() == startState
		}
	case mcp.StateTimedOut:
		cmd.State = mission.CommandTimedOut
		o.commandSetback(overridden, viol, CauseProtocolError, errors.New("command timed out on the vehicle"))
	default: // failed
		cmd.State = mission.CommandFailed
		o.commandSetback(overridden, viol, CauseProtocolError, errors.New("command failed on the vehicle"))
	}
}

// await blocks until the command is terminal. With guard set, telemetry keeps
// refreshing and the safety monitor keeps running; a violation cancels the
// wait immediately and is returned instead of an outcome.
func (o *Orchestrator) await(ctx context.Context, correlationID string, guard bool) (string, *safety.Violation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.CommandTimeout)
	defer cancel()

	type outcome struct {
		state string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		state, err := o.client.AwaitCompletion(waitCtx, correlationID)
		done <- outcome{state, err}
	}()

	if !guard {
		out := <-done
		return out.state, nil, out.err
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case out := <-done:
			return out.state, nil, out.err
		case <-ticker.C:
			rctx, rcancel := context.WithTimeout(ctx, o.cfg.PollTimeout)
			_ = o.cache.Refresh(rctx)
			rcancel()
			v, have := o.cache.Latest()
			if viol := o.evaluate(v, have); viol != nil {
				cancel()
				<-done
				return "", viol, nil
			}
		}
	}
}

// onCompleted applies the lifecycle event matching a completed command. The
// from-state checks keep agent repetition (arming twice, say) from ever
// reaching the machine as an illegal event.
func (o *Orchestrator) onCompleted(act mission.Action) {
	st := o.machine.State()
	switch act.Kind {
	case mission.ActionArm:
		if st == mission.StateConnecting {
			o.transition(mission.EventArmConfirmed)
		}
	case mission.ActionTakeoff:
		if st == mission.StateArmed {
			o.transition(mission.EventTakeoffCompleted)
		}
	case mission.ActionLand, mission.ActionReturnToLaunch:
		// The vehicle auto-disarms on touchdown; telemetry is the witness.
		if v, have := o.cache.Latest(); have && !v.Armed && st == mission.StateLanding {
			o.transition(mission.EventDisarmConfirmed)
		}
	case mission.ActionDisarm:
		if st == mission.StateLanding {
			o.transition(mission.EventDisarmConfirmed)
		}
	}
}

// commandSetback handles a command that did not complete. A failed safety
// override is unrecoverable; agent commands are retried across cycles up to
// the ceiling.
func (o *Orchestrator) commandSetback(overridden bool, viol *safety.Violation, cause string, err error) {
	if overridden {
		logf("[orchestrator] safety override failed, aborting: %v", err)
		o.recordCause(viol.Error())
		o.transition(mission.EventSafetyAbort)
		return
	}
	o.commandRetries++
	o.lastError = err.Error()
	logf("[orchestrator] command setback (%d/%d): %v", o.commandRetries, o.cfg.CommandRetryCeiling, err)
	if o.commandRetries > o.cfg.CommandRetryCeiling {
		o.fail(cause)
	}
}

// abort is the cancellation path: exactly one best-effort failsafe command,
// then the mission is Aborted whether or not it got through.
func (o *Orchestrator) abort() {
	o.recordCause(CauseOperatorAbort)

	actx, cancel := context.WithTimeout(context.Background(), o.cfg.AbortTimeout)
	defer cancel()

	v, have := o.cache.Latest()
	act := o.monitor.Override(v, have)
	correlationID := uuid.New().String()
	cm := metrics.CommandMetrics{
		CorrelationID: correlationID,
		Action:        act.String(),
		Overridden:    true,
		Start:         time.Now(),
	}
	logf("[orchestrator] aborting, issuing %s", act)
	if _, err := o.client.Execute(actx, translate(act, correlationID)); err != nil {
		cm.Outcome = mission.CommandFailed.String()
		cm.Err = err.Error()
		logf("[orchestrator] abort command failed: %v", err)
	} else if state, err := o.client.AwaitCompletion(actx, correlationID); err != nil {
		cm.Outcome = mission.CommandTimedOut.String()
		cm.Err = err.Error()
	} else {
		cm.Outcome = state
	}
	cm.End = time.Now()
	cm.Finalize()
	o.mm.Commands = append(o.mm.Commands, cm)

	o.transition(mission.EventSafetyAbort)
}

// transition applies a lifecycle event. Rejection here is an invariant
// breach, which is fatal for the mission.
func (o *Orchestrator) transition(ev mission.Event) {
	if _, err := o.machine.Transition(ev); err != nil {
		logf("[orchestrator] %v", err)
		o.recordCause(CauseIllegalTransition)
		_, _ = o.machine.Transition(mission.EventProtocolFailure)
	}
}

func (o *Orchestrator) fail(cause string) {
	o.recordCause(cause)
	o.transition(mission.EventProtocolFailure)
}

func (o *Orchestrator) noteViolation(viol *safety.Violation) {
	logf("[orchestrator] safety violation: %v", viol)
	o.recordCause(viol.Error())
}

// recordCause keeps the first cause; later ones are consequences.
func (o *Orchestrator) recordCause(cause string) {
	if o.mm.Cause == "" {
		o.mm.Cause = cause
	}
}

func translate(act mission.Action, correlationID string) mcp.ExecuteRequest {
	params := map[string]any{}
	switch act.Kind {
	case mission.ActionTakeoff:
		params["alt_m"] = act.AltM
	case mission.ActionGoto:
		params["lat"] = act.Lat
		params["lon"] = act.Lon
		params["alt_m"] = act.AltM
	}
	return mcp.ExecuteRequest{
		ActionType:    act.Kind.String(),
		Params:        params,
		CorrelationID: correlationID,
	}
}

func rejectionCause(err error) string {
	if errors.Is(err, mcp.ErrRejected) {
		return CauseProtocolRejected
	}
	return CauseProtocolError
}

func logf(format string, args ...any) {
	if logger.Log != nil {
		logger.Log.Printf(format, args...)
	}
}
