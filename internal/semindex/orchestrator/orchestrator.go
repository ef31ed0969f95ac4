// Package orchestrator implements the update orchestrator (C8): it selects
// a commit scope (incremental, rebase, or rebuild), drives C3-C7 for the
// STATED and INFERRED forms in turn, and replays relationship and axiom
// deltas into the graph and attribute accumulator (§4.6).
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/terminology-platform/semindex/internal/domain"
	pkgerrors "github.com/terminology-platform/semindex/internal/pkg/errors"
	"github.com/terminology-platform/semindex/internal/platform/logger"
	"github.com/terminology-platform/semindex/internal/semindex/attrchange"
	"github.com/terminology-platform/semindex/internal/semindex/axiom"
	"github.com/terminology-platform/semindex/internal/semindex/changeset"
	"github.com/terminology-platform/semindex/internal/semindex/graph"
	"github.com/terminology-platform/semindex/internal/semindex/loader"
	"github.com/terminology-platform/semindex/internal/semindex/rebase"
	"github.com/terminology-platform/semindex/internal/semindex/store"
	"github.com/terminology-platform/semindex/internal/semindex/writer"
)

// forms is the fixed STATED-then-INFERRED order §4.9 requires for every
// pipeline run.
var forms = []domain.Form{domain.Stated, domain.Inferred}

// Dependencies bundles every external collaborator the orchestrator drives.
// Converter, Existence and Mirror are optional; a nil Converter disables
// axiom handling (INFERRED form never needs one), a nil Existence uses
// NoExistenceCheck, and a nil Mirror simply skips mirroring.
type Dependencies struct {
	Relationships store.EntityStore[domain.Relationship]
	Axioms        store.EntityStore[domain.AxiomMember]
	QueryConcepts store.EntityStore[*domain.QueryConcept]
	Converter     axiom.Converter
	Existence     ConceptExistenceChecker
	Mirror        Mirror
}

// Orchestrator drives the semantic index pipeline for both forms on every
// commit, per §4.9.
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	log    *logger.Logger
	tracer trace.Tracer

	disabledOnce sync.Once
}

// New builds an Orchestrator. log may be nil in tests.
func New(deps Dependencies, cfg Config, log *logger.Logger) *Orchestrator {
	if deps.Existence == nil {
		deps.Existence = NoExistenceCheck{}
	}
	if cfg.BatchSaveSize <= 0 {
		cfg.BatchSaveSize = writer.DefaultBatchSize
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		log:    log,
		tracer: otel.Tracer("semindex/orchestrator"),
	}
}

// PreCommitCompletion is the commit-hook entry point (§6): the store
// invokes this between staged writes and durability. A non-nil error must
// abort the commit.
func (o *Orchestrator) PreCommitCompletion(ctx context.Context, commit store.Commit) error {
	if commit.Branch.Path == "" {
		return fmt.Errorf("%w: commit.Branch.Path is required", pkgerrors.ErrInvalidArgument)
	}

	ctx, span := o.tracer.Start(ctx, "semindex.PreCommitCompletion",
		trace.WithAttributes(attribute.String("branch", commit.Branch.Path), attribute.Bool("rebase", commit.Rebase)))
	defer span.End()

	if !o.cfg.SemanticIndexingEnabled {
		o.disabledOnce.Do(func() {
			if o.log != nil {
				o.log.Info("semantic indexing disabled; commit hook is a no-op")
			}
		})
		return nil
	}

	for _, form := range forms {
		var err error
		if commit.IsRebase() {
			err = o.runRebase(ctx, commit, form)
		} else {
			err = o.runIncremental(ctx, commit, form)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Rebuild is the admin entry point (§6): the caller has already opened a
// commit tagged for a semantic index rebuild on the chosen branch. Rebuild
// runs the pipeline with rebuild=true for both forms over the branch's
// entire committed content; it does not mark the commit successful — that
// remains the caller's (out-of-scope store's) responsibility.
func (o *Orchestrator) Rebuild(ctx context.Context, commit store.Commit) error {
	if commit.Branch.Path == "" {
		return fmt.Errorf("%w: commit.Branch.Path is required", pkgerrors.ErrInvalidArgument)
	}

	ctx, span := o.tracer.Start(ctx, "semindex.Rebuild", trace.WithAttributes(attribute.String("branch", commit.Branch.Path)))
	defer span.End()

	if !commit.Branch.IsRoot() && o.log != nil {
		o.log.Warn("rebuilding semantic index on a non-root branch; versions-replaced interactions are the caller's responsibility", "branch", commit.Branch.Path)
	}

	for _, form := range forms {
		if err := o.runRebuild(ctx, commit, form); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runIncremental(ctx context.Context, commit store.Commit, form domain.Form) error {
	scopeCriteria := store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeWithinCommit, Commit: &commit}
	return o.runPipeline(ctx, commit, form, scopeCriteria, false, false)
}

func (o *Orchestrator) runRebase(ctx context.Context, commit store.Commit, form domain.Form) error {
	// Reconcile runs once per rebase commit, before the first form's pass;
	// running it again for the second form would end the rows that the first
	// form's pass has just written on this branch.
	if form == forms[0] {
		if err := rebase.Reconcile(ctx, commit, o.deps.QueryConcepts); err != nil {
			return &StorageFailureError{Form: form, Op: "rebase reconcile", Err: err}
		}
	}
	scopeCriteria := store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeSinceBranchBase, Commit: &commit}
	return o.runPipeline(ctx, commit, form, scopeCriteria, false, true)
}

func (o *Orchestrator) runRebuild(ctx context.Context, commit store.Commit, form domain.Form) error {
	scopeCriteria := store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeIncludingCommit, Commit: &commit}
	return o.runPipeline(ctx, commit, form, scopeCriteria, true, false)
}

// runPipeline drives C4 (change-set discovery) -> C5 (existing-graph load)
// -> delta replay -> C6 (projection write) for one form. newGraph marks a
// rebase run so the writer treats every loaded node as needing a rewrite
// even without an explicit updated mark (the branch's own rows were just
// invalidated by Reconcile, so "existing" is the parent's content only).
func (o *Orchestrator) runPipeline(ctx context.Context, commit store.Commit, form domain.Form, scopeCriteria store.BranchCriteria, rebuild, newGraph bool) error {
	ctx, span := o.tracer.Start(ctx, "semindex.runPipeline", trace.WithAttributes(
		attribute.String("form", form.String()), attribute.Bool("rebuild", rebuild), attribute.Bool("rebase", newGraph)))
	defer span.End()

	if rebuild {
		return o.runRebuildPipeline(ctx, commit, form, scopeCriteria)
	}

	cs, err := changeset.Discover(ctx, scopeCriteria, form, o.deps.Relationships, o.deps.Axioms, o.deps.Converter)
	if err != nil {
		return wrapPipelineError(form, "changeset discovery", err)
	}
	if cs.Empty {
		if o.log != nil {
			o.log.Info("empty change set; nothing to update", "form", form.String(), "branch", commit.Branch.Path)
		}
		return nil
	}

	loadCriteria := store.BranchCriteria{Branch: commit.Branch, Scope: store.ScopeBeforeCommit, Commit: &commit}
	loadResult, err := loader.Load(ctx, loadCriteria, form, cs.UpdateSource, cs.UpdateDestination, o.deps.QueryConcepts, false, o.deps.Relationships, o.deps.Axioms, o.deps.Converter)
	if err != nil {
		return wrapPipelineError(form, "existing graph load", err)
	}

	attrs := attrchange.New()
	requiredActive, err := o.replay(ctx, scopeCriteria, form, loadResult.Graph, attrs, commit.Branch.Path)
	if err != nil {
		return wrapPipelineError(form, "delta replay", err)
	}

	o.checkIntegrity(ctx, form, requiredActive)

	outcome, err := writer.Write(ctx, writer.Options{
		Form:          form,
		Graph:         loadResult.Graph,
		Attributes:    attrs,
		NewGraph:      newGraph,
		Rebuild:       false,
		BranchPath:    commit.Branch.Path,
		Commit:        commit,
		QueryConcepts: o.deps.QueryConcepts,
		BatchSize:     o.cfg.BatchSaveSize,
	})
	if err != nil {
		return &StorageFailureError{Form: form, Op: "projection write", Err: err}
	}

	o.mirror(ctx, form, commit.Branch.Path, outcome)
	return nil
}

func (o *Orchestrator) runRebuildPipeline(ctx context.Context, commit store.Commit, form domain.Form, scopeCriteria store.BranchCriteria) error {
	loadResult, err := loader.Load(ctx, scopeCriteria, form, nil, nil, o.deps.QueryConcepts, true, o.deps.Relationships, o.deps.Axioms, o.deps.Converter)
	if err != nil {
		return wrapPipelineError(form, "rebuild graph load", err)
	}

	attrs := attrchange.New()
	if err := o.replayAttributesForRebuild(ctx, scopeCriteria, form, attrs); err != nil {
		return wrapPipelineError(form, "rebuild attribute replay", err)
	}

	outcome, err := writer.Write(ctx, writer.Options{
		Form:          form,
		Graph:         loadResult.Graph,
		Attributes:    attrs,
		Rebuild:       true,
		BranchPath:    commit.Branch.Path,
		Commit:        commit,
		QueryConcepts: o.deps.QueryConcepts,
		BatchSize:     o.cfg.BatchSaveSize,
	})
	if err != nil {
		return &StorageFailureError{Form: form, Op: "rebuild projection write", Err: err}
	}

	o.mirror(ctx, form, commit.Branch.Path, outcome)
	return nil
}

// replay implements §4.6: stream relationship versions in scope (and, for
// STATED, axiom fragments) and route each into the graph builder or the
// attribute accumulator. It returns the concept ids seen on active
// relationships (requiredActiveConcepts) for the integrity check.
//
// An ended version is either *replaced* (a newer version of the same
// relationship/axiom will also appear in this stream and is processed on
// its own) or *deleted* (the underlying entity was removed outright).
// Replaced versions must be ignored entirely; deleted versions are treated
// as removals. The store distinguishes the two via commit.EntitiesDeleted
// and the branch's versions-replaced set, not by re-scanning the stream.
func (o *Orchestrator) replay(ctx context.Context, criteria store.BranchCriteria, form domain.Form, g *graph.Builder, attrs *attrchange.Accumulator, branchPath string) (domain.ConceptSet, error) {
	required := domain.ConceptSet{}
	characteristicTypes := characteristicSet(form)

	relDeletions := deletionSet(criteria.Commit, store.KindRelationship)
	axiomDeletions := deletionSet(criteria.Commit, store.KindAxiomMember)

	apply := func(r domain.Relationship, deleted bool) {
		applyDelta(g, attrs, branchPath, r, deleted)
		if r.Active && !r.Ended() {
			required.Add(r.SourceID)
			required.Add(r.TypeID)
			required.Add(r.DestinationID)
		}
	}

	err := o.deps.Relationships.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		if !characteristicTypes[r.CharacteristicType] {
			return nil
		}
		apply(r, relDeletions.Has(r.SourceID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if form == domain.Stated && o.deps.Axioms != nil && o.deps.Converter != nil {
		var members []domain.AxiomMember
		if err := o.deps.Axioms.Stream(ctx, criteria, nil, func(a domain.AxiomMember) error {
			members = append(members, a)
			return nil
		}); err != nil {
			return nil, err
		}
		convErr := axiom.Stream(members, o.deps.Converter, axiom.Any, func(member domain.AxiomMember, r domain.Relationship) {
			apply(r, axiomDeletions.Has(member.ReferencedConceptID))
		})
		if convErr != nil {
			return nil, convErr
		}
	}

	return required, nil
}

// deletionSet returns the ids this commit treats as genuinely deleted for
// the given entity kind: concepts deleted outright this commit, plus ids
// whose version is hidden on this branch by the versions-replaced
// mechanism. Both the commit and its VersionsReplaced accessor are optional.
func deletionSet(commit *store.Commit, kind store.EntityKind) domain.ConceptSet {
	if commit == nil {
		return nil
	}
	out := commit.EntitiesDeleted
	if commit.VersionsReplaced != nil {
		out = out.Union(commit.VersionsReplaced(kind))
	}
	return out
}

// replayAttributesForRebuild rebuilds attributeGroups from scratch for a
// full rebuild run: only active non-ISA relationships (and, for STATED,
// active axiom non-ISA fragments) contribute, since a rebuild has no notion
// of "deletions within scope" — it reconstructs current state directly.
func (o *Orchestrator) replayAttributesForRebuild(ctx context.Context, criteria store.BranchCriteria, form domain.Form, attrs *attrchange.Accumulator) error {
	characteristicTypes := characteristicSet(form)
	err := o.deps.Relationships.Stream(ctx, criteria, nil, func(r domain.Relationship) error {
		if !r.Active || r.IsISA() || !characteristicTypes[r.CharacteristicType] {
			return nil
		}
		attrs.Add(r.SourceID, domain.AttributeChange{EffectiveTime: r.EffectiveTime, Group: r.Group, Type: r.TypeID, Value: r.DestinationID, Add: true})
		return nil
	})
	if err != nil {
		return err
	}

	if form == domain.Stated && o.deps.Axioms != nil && o.deps.Converter != nil {
		var members []domain.AxiomMember
		if err := o.deps.Axioms.Stream(ctx, criteria, nil, func(a domain.AxiomMember) error {
			if a.Active {
				members = append(members, a)
			}
			return nil
		}); err != nil {
			return err
		}
		notISA := func(r domain.Relationship) bool { return !r.IsISA() }
		return axiom.Stream(members, o.deps.Converter, notISA, func(_ domain.AxiomMember, r domain.Relationship) {
			attrs.Add(r.SourceID, domain.AttributeChange{EffectiveTime: r.EffectiveTime, Group: r.Group, Type: r.TypeID, Value: r.DestinationID, Add: true})
		})
	}
	return nil
}

// applyDelta routes a single relationship version into the graph or the
// attribute accumulator, per §4.6, and applies the
// CONCEPT_MODEL_OBJECT_ATTRIBUTE synthetic parent whenever it appears as a
// destination. deleted is only meaningful when r.Ended(): it distinguishes a
// genuine deletion (must be applied as a removal) from a replaced version
// (a newer version exists and will be processed in its own right, so this
// one is ignored entirely, including its synthetic-parent side effect).
func applyDelta(g *graph.Builder, attrs *attrchange.Accumulator, branchPath string, r domain.Relationship, deleted bool) {
	if r.Ended() && !deleted {
		return
	}
	active := r.Active
	if r.Ended() {
		active = false
	}
	if r.IsISA() {
		if active {
			node := g.AddParent(r.SourceID, r.DestinationID)
			g.MarkUpdated(node, branchPath)
		} else {
			node := g.RemoveParent(r.SourceID, r.DestinationID)
			g.MarkUpdated(node, branchPath)
		}
	} else {
		attrs.Add(r.SourceID, domain.AttributeChange{
			EffectiveTime: r.EffectiveTime,
			Group:         r.Group,
			Type:          r.TypeID,
			Value:         r.DestinationID,
			Add:           active,
		})
	}

	if r.DestinationID == domain.ConceptModelObjectAttribute {
		node := g.AddParent(domain.ConceptModelObjectAttribute, domain.ConceptModelAttribute)
		g.MarkUpdated(node, branchPath)
	}
}

func (o *Orchestrator) checkIntegrity(ctx context.Context, form domain.Form, requiredActive domain.ConceptSet) {
	if len(requiredActive) == 0 {
		return
	}
	missing, err := o.deps.Existence.MissingOrInactive(ctx, requiredActive)
	if err != nil {
		if o.log != nil {
			o.log.Warn("concept existence check failed; continuing without it", "form", form.String(), "error", err)
		}
		return
	}
	if len(missing) > 0 && o.log != nil {
		o.log.Warn("relationship references concepts that are missing or inactive", "form", form.String(), "concept_ids", missing.Slice())
	}
}

func (o *Orchestrator) mirror(ctx context.Context, form domain.Form, branchPath string, outcome *writer.Outcome) {
	if o.deps.Mirror == nil || outcome == nil {
		return
	}
	if err := o.deps.Mirror.MirrorBatch(ctx, form, branchPath, outcome.Upserted, outcome.Deleted); err != nil && o.log != nil {
		o.log.Warn("graph mirror update failed; projection store remains authoritative", "form", form.String(), "branch", branchPath, "error", err)
	}
}

func wrapPipelineError(form domain.Form, op string, err error) error {
	var convErr *axiom.ConversionError
	if asConversionError(err, &convErr) {
		return &ConversionFailureError{Form: form, Err: err}
	}
	return &StorageFailureError{Form: form, Op: op, Err: err}
}

func asConversionError(err error, target **axiom.ConversionError) bool {
	for err != nil {
		if ce, ok := err.(*axiom.ConversionError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func characteristicSet(form domain.Form) map[domain.CharacteristicType]bool {
	set := map[domain.CharacteristicType]bool{}
	for _, ct := range domain.CharacteristicTypesFor(form) {
		set[ct] = true
	}
	return set
}
