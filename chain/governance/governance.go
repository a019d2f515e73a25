// Package governance implements protocol-parameter governance only
// (spec.md §1 Non-goal excludes a governance UI, never the on-chain
// accounting behind a parameter change or an emergency-council update —
// the Bridge Verifier and Oracle Aggregator both gate an operation on
// "requires emergency authority", and this is where that authority's
// membership is changed).
//
// Adapted from the teacher's GovernanceSystem (proposals, votes,
// quorum/threshold, execution delay), trimmed of software-upgrade
// staging, validator-set changes, and treasury spends: those belong to
// a full chain governance system, not to this core's protocol knobs
// (daily-cap ceiling, oracle thresholds, bridge confirmation
// threshold, emergency council membership).
package governance

import (
	"sort"
	"sync"

	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// ParameterKind names the protocol knob a proposal changes.
type ParameterKind uint8

const (
	ParamDailyCapCeilingMicro ParameterKind = iota
	ParamOracleDeviationThresholdBPS
	ParamOracleBreakerThresholdBPS
	ParamBridgeConfirmationThreshold
	ParamEmergencyCouncilAdd
	ParamEmergencyCouncilRemove
)

// ProposalStatus mirrors the teacher's ProposalStatus, trimmed to the
// states a protocol-parameter proposal actually passes through.
type ProposalStatus uint8

const (
	StatusPending ProposalStatus = iota
	StatusPassed
	StatusRejected
	StatusExecuted
)

// VoteOption mirrors the teacher's VoteOption, dropping NoWithVeto:
// protocol-parameter changes have no veto-weighted supermajority rule.
type VoteOption uint8

const (
	VoteYes VoteOption = iota
	VoteNo
	VoteAbstain
)

// Proposal is one protocol-parameter change under vote.
type Proposal struct {
	ID       uint64
	Proposer fintypes.Address
	Kind     ParameterKind
	Value    uint64           // new value, for the numeric ParameterKinds
	Member   fintypes.Address // target address, for the council ParameterKinds

	SubmittedTS int64
	VotingEndTS int64
	ExecutionTS int64
	Status      ProposalStatus
	Executed    bool

	VotesForPower     uint64
	VotesAgainstPower uint64
	VotesAbstainPower uint64
}

// ParameterChange is what Execute hands back for the caller (the node
// wiring layer) to apply to the owning engine's Config — governance
// itself has no import on chain/emission, chain/oracle, or
// chain/bridge, so it cannot apply the change directly without an
// import cycle.
type ParameterChange struct {
	Kind   ParameterKind
	Value  uint64
	Member fintypes.Address
}

// VotingPower reports a validator's current voting weight, narrowed
// from the teacher's ValidatorSet interface to the two methods
// governance actually needs.
type VotingPower interface {
	Power(addr fintypes.Address) (power uint64, isActiveValidator bool)
	TotalPower() uint64
}

// Config holds governance's tunable timing/threshold parameters.
// spec.md never names governance timing itself, so these follow the
// teacher's own defaults (see NewEngine).
type Config struct {
	VotingPeriodSeconds   int64
	ExecutionDelaySeconds int64
	QuorumBPS             fixedpoint.BPS
	ThresholdBPS          fixedpoint.BPS
}

// DefaultConfig matches the teacher's GovernanceSystem defaults: a
// 7-day voting period, a 1-day execution delay, 40% quorum, 50%
// approval threshold.
func DefaultConfig() Config {
	return Config{
		VotingPeriodSeconds:   7 * 24 * 3600,
		ExecutionDelaySeconds: 24 * 3600,
		QuorumBPS:             4000,
		ThresholdBPS:          5000,
	}
}

// Engine runs proposal submission, voting, tallying, and execution. It
// holds no entity state beyond its own proposals/votes/council,
// mirroring the teacher's GovernanceSystem, which held no ledger state
// either.
type Engine struct {
	mu sync.Mutex

	cfg        Config
	validators VotingPower

	proposals map[uint64]*Proposal
	votes     map[uint64]map[fintypes.Address]VoteOption
	nextID    uint64

	council map[fintypes.Address]bool
}

func NewEngine(cfg Config, validators VotingPower) *Engine {
	return &Engine{
		cfg:        cfg,
		validators: validators,
		proposals:  make(map[uint64]*Proposal),
		votes:      make(map[uint64]map[fintypes.Address]VoteOption),
		nextID:     1,
		council:    make(map[fintypes.Address]bool),
	}
}

// SeedCouncil installs the genesis emergency council membership. Called
// once at node startup, before any proposal can change it.
func (e *Engine) SeedCouncil(members []fintypes.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range members {
		e.council[m] = true
	}
}

// IsCouncilMember reports whether addr currently holds emergency
// council membership, for chain/bridge and chain/oracle's emergency
// authority checks.
func (e *Engine) IsCouncilMember(addr fintypes.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.council[addr]
}

// SubmitProposal implements the teacher's SubmitProposal, narrowed to
// a single content shape (kind/value/member) instead of the teacher's
// open ProposalContent union — every protocol-parameter change fits
// one (kind, value, member) triple.
func (e *Engine) SubmitProposal(proposer fintypes.Address, kind ParameterKind, value uint64, member fintypes.Address, now int64) (*Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, active := e.validators.Power(proposer); !active {
		return nil, fintypes.ErrAuthorization(fintypes.CodeNotActiveValidator, "proposer %s is not an active validator", proposer.Hex())
	}

	p := &Proposal{
		ID:          e.nextID,
		Proposer:    proposer,
		Kind:        kind,
		Value:       value,
		Member:      member,
		SubmittedTS: now,
		VotingEndTS: now + e.cfg.VotingPeriodSeconds,
		Status:      StatusPending,
	}
	e.proposals[p.ID] = p
	e.votes[p.ID] = make(map[fintypes.Address]VoteOption)
	e.nextID++
	return p, nil
}

// CastVote implements the teacher's CastVote: one vote per validator
// per proposal, weighted by current voting power, while the voting
// window is still open.
func (e *Engine) CastVote(proposalID uint64, voter fintypes.Address, option VoteOption, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.proposals[proposalID]
	if !ok {
		return fintypes.ErrInvariant(fintypes.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	if now > p.VotingEndTS {
		return fintypes.ErrInvariant(fintypes.CodeVotingNotOpen, "voting on proposal %d closed at %d", proposalID, p.VotingEndTS)
	}
	power, active := e.validators.Power(voter)
	if !active {
		return fintypes.ErrAuthorization(fintypes.CodeNotActiveValidator, "voter %s is not an active validator", voter.Hex())
	}
	if _, voted := e.votes[proposalID][voter]; voted {
		return fintypes.ErrInvariant(fintypes.CodeAlreadyVoted, "validator %s already voted on proposal %d", voter.Hex(), proposalID)
	}

	switch option {
	case VoteYes:
		p.VotesForPower += power
	case VoteNo:
		p.VotesAgainstPower += power
	case VoteAbstain:
		p.VotesAbstainPower += power
	}
	e.votes[proposalID][voter] = option
	return nil
}

// Tally implements the teacher's TallyVotes: quorum against total
// voting power, then an approval threshold among decided (non-abstain)
// votes, met when the for-share is at least ThresholdBPS (so with the
// default 5000bps an exact tie passes).
func (e *Engine) Tally(proposalID uint64, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.proposals[proposalID]
	if !ok {
		return fintypes.ErrInvariant(fintypes.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	if now <= p.VotingEndTS {
		return fintypes.ErrInvariant(fintypes.CodeVotingNotOpen, "voting on proposal %d has not ended", proposalID)
	}
	if p.Status != StatusPending {
		return nil
	}

	total := e.validators.TotalPower()
	turnout := p.VotesForPower + p.VotesAgainstPower + p.VotesAbstainPower
	if total == 0 || fixedpoint.MulDivUint64(turnout, uint64(fixedpoint.BPSScale), total) < uint64(e.cfg.QuorumBPS) {
		p.Status = StatusRejected
		return nil
	}

	decided := p.VotesForPower + p.VotesAgainstPower
	if decided == 0 {
		p.Status = StatusRejected
		return nil
	}
	approvalBPS := fixedpoint.MulDivUint64(p.VotesForPower, uint64(fixedpoint.BPSScale), decided)
	if approvalBPS >= uint64(e.cfg.ThresholdBPS) {
		p.Status = StatusPassed
		p.ExecutionTS = now + e.cfg.ExecutionDelaySeconds
	} else {
		p.Status = StatusRejected
	}
	return nil
}

// Execute implements the teacher's ExecuteProposal: a passed proposal
// becomes executable only after its execution delay elapses. Council
// membership changes apply directly to Engine's own state; every other
// kind returns a ParameterChange descriptor for the node wiring layer
// to apply to the owning engine's Config.
func (e *Engine) Execute(proposalID uint64, now int64) (ParameterChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.proposals[proposalID]
	if !ok {
		return ParameterChange{}, fintypes.ErrInvariant(fintypes.CodeProposalNotFound, "proposal %d not found", proposalID)
	}
	if p.Status != StatusPassed {
		return ParameterChange{}, fintypes.ErrInvariant(fintypes.CodeProposalNotPassed, "proposal %d has not passed", proposalID)
	}
	if p.Executed {
		return ParameterChange{}, fintypes.ErrInvariant(fintypes.CodeAlreadyExecuted, "proposal %d already executed", proposalID)
	}
	if now < p.ExecutionTS {
		return ParameterChange{}, fintypes.ErrInvariant(fintypes.CodeExecutionDelayActive, "proposal %d executes at %d, not before", proposalID, p.ExecutionTS)
	}

	switch p.Kind {
	case ParamEmergencyCouncilAdd:
		e.council[p.Member] = true
	case ParamEmergencyCouncilRemove:
		delete(e.council, p.Member)
	}

	p.Executed = true
	p.Status = StatusExecuted
	return ParameterChange{Kind: p.Kind, Value: p.Value, Member: p.Member}, nil
}

// Proposal returns a single proposal by ID.
func (e *Engine) Proposal(proposalID uint64) (*Proposal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.proposals[proposalID]
	return p, ok
}

// Proposals returns every known proposal, newest first, matching the
// teacher's GetProposals ordering.
func (e *Engine) Proposals() []*Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Proposal, 0, len(e.proposals))
	for _, p := range e.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}
