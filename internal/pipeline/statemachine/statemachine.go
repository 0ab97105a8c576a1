// Package statemachine implements the Material processing_step state
// machine as a pure function, merging two designs found in the prior
// Python implementation: the nested transition table with global
// actions from atomic_state_machine.py, and the flag-bearing
// transition shape (clears-intermediate, auto-chains) from
// state_machine.py.
package statemachine

import (
	"log"

	"github.com/freedkr/moonshot-translate/internal/model"
)

// Action is one state-machine action. Distinct from model.ProcessingStep:
// actions are verbs, steps are nouns.
type Action string

const (
	ActionUploadImage          Action = "upload-image"
	ActionUploadPDF            Action = "upload-pdf"
	ActionSplitSuccess         Action = "split-success"
	ActionStartTranslate       Action = "start-translate"
	ActionOCRSuccess           Action = "ocr-success"
	ActionOCRFail              Action = "ocr-fail"
	ActionStartEntityRecognize Action = "start-entity-recognize"
	ActionEntityRecognizeOK    Action = "er-success"
	ActionEntityRecoverableFail Action = "er-recoverable-fail"
	ActionEntityFatal          Action = "er-fatal"
	ActionConfirmEntities      Action = "confirm-entities"
	ActionStartLLM             Action = "start-llm"
	ActionLLMSuccess           Action = "llm-success"
	ActionLLMFail              Action = "llm-fail"
	ActionConfirm              Action = "confirm"
	ActionUnconfirm            Action = "unconfirm"
	ActionRetranslate          Action = "retranslate"
	ActionRotate               Action = "rotate"
)

// Kind classifies a transition the way the original design's
// AtomicAction/StateTransition split did: "normal" ones are
// user-triggered, "auto" ones fire when a background stage finishes,
// "skip"/"retry"/"rollback"/"reset" describe the remaining
// special-cased edges in the table (spec §4.3).
type Kind string

const (
	KindNormal   Kind = "normal"
	KindAuto     Kind = "auto"
	KindSkip     Kind = "skip"
	KindRetry    Kind = "retry"
	KindRollback Kind = "rollback"
	KindReset    Kind = "reset"
)

// Result is what applying a Transition produces.
type Result struct {
	To                 model.ProcessingStep
	Kind               Kind
	ClearsIntermediate bool
	// AutoChain, if non-empty, is the action the orchestrator should
	// immediately apply to To once this transition lands (the
	// entity_confirmed -> llm_translating auto-chain).
	AutoChain Action
}

// Context carries the data-dependent bits the table alone can't
// resolve: "unconfirm" lands on llm_translated if an LLM result
// exists, translated otherwise; entity recognition in deep mode
// auto-confirms and auto-chains past the entity_pending_confirm gate
// instead of stopping there (spec §4.4.3 point 4).
type Context struct {
	HasLLMResult        bool
	AutoConfirmEntities bool
}

type transitionEntry struct {
	to                 model.ProcessingStep
	kind               Kind
	clearsIntermediate bool
	autoChain          Action
	// dynamicTo, if set, overrides `to` using ctx (used by unconfirm).
	dynamicTo func(Context) model.ProcessingStep
	// dynamicAutoChain, if set, overrides autoChain using ctx (used by
	// the entity-recognition success transition: deep mode chains
	// straight into confirm-entities, standard mode does not).
	dynamicAutoChain func(Context) Action
}

// globalActions are allowed from any non-null step regardless of the
// per-step transition table, mirroring atomic_state_machine.py's
// GLOBAL_ACTIONS.
var globalActions = map[Action]transitionEntry{
	ActionRetranslate: {to: model.StepTranslating, kind: KindRetry, clearsIntermediate: true},
	ActionRotate:      {to: model.StepUploaded, kind: KindReset, clearsIntermediate: true},
}

// table holds the per-step transitions that are not globally available.
var table = map[model.ProcessingStep]map[Action]transitionEntry{
	model.StepSplitting: {
		ActionSplitSuccess: {to: model.StepSplitCompleted, kind: KindAuto},
	},
	model.StepUploaded: {
		ActionStartTranslate: {to: model.StepTranslating, kind: KindNormal},
	},
	model.StepSplitCompleted: {
		ActionStartTranslate: {to: model.StepTranslating, kind: KindNormal},
	},
	model.StepTranslating: {
		ActionOCRSuccess: {to: model.StepTranslated, kind: KindAuto},
		ActionOCRFail:    {to: model.StepFailed, kind: KindAuto},
	},
	model.StepTranslated: {
		ActionStartEntityRecognize: {to: model.StepEntityRecognizing, kind: KindNormal},
		ActionStartLLM:             {to: model.StepLLMTranslating, kind: KindNormal},
		ActionConfirm:              {to: model.StepConfirmed, kind: KindNormal},
	},
	model.StepEntityRecognizing: {
		ActionEntityRecognizeOK: {
			to:   model.StepEntityPendingConfirm,
			kind: KindAuto,
			dynamicAutoChain: func(ctx Context) Action {
				if ctx.AutoConfirmEntities {
					return ActionConfirmEntities
				}
				return ""
			},
		},
		ActionEntityRecoverableFail: {to: model.StepTranslated, kind: KindSkip},
		ActionEntityFatal:           {to: model.StepFailed, kind: KindAuto},
	},
	model.StepEntityPendingConfirm: {
		ActionConfirmEntities: {to: model.StepEntityConfirmed, kind: KindNormal, autoChain: ActionStartLLM},
	},
	model.StepEntityConfirmed: {
		ActionStartLLM: {to: model.StepLLMTranslating, kind: KindAuto},
	},
	model.StepLLMTranslating: {
		ActionLLMSuccess: {to: model.StepLLMTranslated, kind: KindAuto},
		ActionLLMFail:    {to: model.StepFailed, kind: KindAuto},
	},
	model.StepLLMTranslated: {
		ActionConfirm: {to: model.StepConfirmed, kind: KindNormal},
	},
	model.StepConfirmed: {
		ActionUnconfirm: {
			kind: KindRollback,
			dynamicTo: func(ctx Context) model.ProcessingStep {
				if ctx.HasLLMResult {
					return model.StepLLMTranslated
				}
				return model.StepTranslated
			},
		},
	},
}

// processingStates are advanced by a background task; no user action
// is accepted while in one of these (spec §4.3, §5 "exactly one
// background task").
var processingStates = map[model.ProcessingStep]bool{
	model.StepSplitting:         true,
	model.StepTranslating:       true,
	model.StepEntityRecognizing: true,
	model.StepLLMTranslating:    true,
}

var waitingUserStates = map[model.ProcessingStep]bool{
	model.StepUploaded:             true,
	model.StepSplitCompleted:       true,
	model.StepEntityPendingConfirm: true,
}

var reviewableStates = map[model.ProcessingStep]bool{
	model.StepTranslated:     true,
	model.StepEntityConfirmed: true,
	model.StepLLMTranslated:  true,
}

var terminalishStates = map[model.ProcessingStep]bool{
	model.StepConfirmed: true,
	model.StepFailed:    true,
}

// legacyStatusNormalization maps pre-migration Chinese-labeled status
// strings (seen on rows ingested before the current step vocabulary
// landed) to their canonical ProcessingStep equivalent.
var legacyStatusNormalization = map[string]model.ProcessingStep{
	"待翻译":   model.StepUploaded,
	"翻译中":   model.StepTranslating,
	"已翻译":   model.StepTranslated,
	"识别中":   model.StepEntityRecognizing,
	"待确认":   model.StepEntityPendingConfirm,
	"已确认实体": model.StepEntityConfirmed,
	"优化中":   model.StepLLMTranslating,
	"已优化":   model.StepLLMTranslated,
	"已完成":   model.StepConfirmed,
	"失败":    model.StepFailed,
}

// NormalizeStep maps a raw status string (current or legacy) onto a
// ProcessingStep. Unknown values are logged and passed through
// unchanged, per spec §4.3.
func NormalizeStep(raw string) model.ProcessingStep {
	step := model.ProcessingStep(raw)
	if _, known := table[step]; known {
		return step
	}
	if step == model.StepConfirmed || step == model.StepFailed {
		return step
	}
	if mapped, ok := legacyStatusNormalization[raw]; ok {
		return mapped
	}
	log.Printf("statemachine: unrecognized processing_step %q, passing through", raw)
	return step
}

// CanDo reports whether action is valid from current.
func CanDo(current model.ProcessingStep, action Action) bool {
	if _, ok := globalActions[action]; ok {
		return true
	}
	_, ok := table[current][action]
	return ok
}

// Apply resolves the transition for (current, action, ctx). The
// caller is responsible for checking that current is not a
// processing state before invoking a normal action (spec §4.3, §5).
func Apply(current model.ProcessingStep, action Action, ctx Context) (Result, bool) {
	entry, ok := table[current][action]
	if !ok {
		entry, ok = globalActions[action]
		if !ok {
			return Result{}, false
		}
	}
	to := entry.to
	if entry.dynamicTo != nil {
		to = entry.dynamicTo(ctx)
	}
	autoChain := entry.autoChain
	if entry.dynamicAutoChain != nil {
		autoChain = entry.dynamicAutoChain(ctx)
	}
	return Result{
		To:                 to,
		Kind:               entry.kind,
		ClearsIntermediate: entry.clearsIntermediate,
		AutoChain:          autoChain,
	}, true
}

// AvailableActions lists every action usable from current, including
// global ones, mirroring get_available_actions.
func AvailableActions(current model.ProcessingStep) []Action {
	actions := make([]Action, 0, len(table[current])+len(globalActions))
	for a := range table[current] {
		actions = append(actions, a)
	}
	for a := range globalActions {
		if _, already := table[current][a]; !already {
			actions = append(actions, a)
		}
	}
	return actions
}

// IsProcessing reports whether step is a background-task-owned state.
func IsProcessing(step model.ProcessingStep) bool { return processingStates[step] }

// IsWaitingUser reports whether step is a user-input gate.
func IsWaitingUser(step model.ProcessingStep) bool { return waitingUserStates[step] }

// IsReviewable reports whether a user may confirm or reopen from step.
func IsReviewable(step model.ProcessingStep) bool { return reviewableStates[step] }

// IsTerminalish reports whether step is confirmed or failed.
func IsTerminalish(step model.ProcessingStep) bool { return terminalishStates[step] }
