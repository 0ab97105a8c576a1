package statemachine

import (
	"testing"

	"github.com/freedkr/moonshot-translate/internal/model"
)

func TestApply_CanonicalTransitions(t *testing.T) {
	tests := []struct {
		name   string
		from   model.ProcessingStep
		action Action
		ctx    Context
		want   model.ProcessingStep
		kind   Kind
	}{
		{"split success", model.StepSplitting, ActionSplitSuccess, Context{}, model.StepSplitCompleted, KindAuto},
		{"start translate from uploaded", model.StepUploaded, ActionStartTranslate, Context{}, model.StepTranslating, KindNormal},
		{"start translate from split_completed", model.StepSplitCompleted, ActionStartTranslate, Context{}, model.StepTranslating, KindNormal},
		{"ocr success", model.StepTranslating, ActionOCRSuccess, Context{}, model.StepTranslated, KindAuto},
		{"ocr fail", model.StepTranslating, ActionOCRFail, Context{}, model.StepFailed, KindAuto},
		{"entity recognize success", model.StepEntityRecognizing, ActionEntityRecognizeOK, Context{}, model.StepEntityPendingConfirm, KindAuto},
		{"entity recoverable fail falls back", model.StepEntityRecognizing, ActionEntityRecoverableFail, Context{}, model.StepTranslated, KindSkip},
		{"entity fatal fails", model.StepEntityRecognizing, ActionEntityFatal, Context{}, model.StepFailed, KindAuto},
		{"confirm entities auto-chains to llm", model.StepEntityPendingConfirm, ActionConfirmEntities, Context{}, model.StepEntityConfirmed, KindNormal},
		{"entity confirmed auto starts llm", model.StepEntityConfirmed, ActionStartLLM, Context{}, model.StepLLMTranslating, KindAuto},
		{"translated starts llm directly", model.StepTranslated, ActionStartLLM, Context{}, model.StepLLMTranslating, KindNormal},
		{"llm success", model.StepLLMTranslating, ActionLLMSuccess, Context{}, model.StepLLMTranslated, KindAuto},
		{"llm fail", model.StepLLMTranslating, ActionLLMFail, Context{}, model.StepFailed, KindAuto},
		{"confirm from translated", model.StepTranslated, ActionConfirm, Context{}, model.StepConfirmed, KindNormal},
		{"confirm from llm_translated", model.StepLLMTranslated, ActionConfirm, Context{}, model.StepConfirmed, KindNormal},
		{"unconfirm with llm result", model.StepConfirmed, ActionUnconfirm, Context{HasLLMResult: true}, model.StepLLMTranslated, KindRollback},
		{"unconfirm without llm result", model.StepConfirmed, ActionUnconfirm, Context{HasLLMResult: false}, model.StepTranslated, KindRollback},
		{"retranslate is global from failed", model.StepFailed, ActionRetranslate, Context{}, model.StepTranslating, KindRetry},
		{"retranslate is global from confirmed", model.StepConfirmed, ActionRetranslate, Context{}, model.StepTranslating, KindRetry},
		{"rotate resets to uploaded", model.StepLLMTranslated, ActionRotate, Context{}, model.StepUploaded, KindReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := Apply(tt.from, tt.action, tt.ctx)
			if !ok {
				t.Fatalf("Apply(%s, %s) = not ok, want %s", tt.from, tt.action, tt.want)
			}
			if result.To != tt.want {
				t.Errorf("Apply(%s, %s).To = %s, want %s", tt.from, tt.action, result.To, tt.want)
			}
			if result.Kind != tt.kind {
				t.Errorf("Apply(%s, %s).Kind = %s, want %s", tt.from, tt.action, result.Kind, tt.kind)
			}
		})
	}
}

func TestApply_ConfirmEntitiesAutoChainsToStartLLM(t *testing.T) {
	result, ok := Apply(model.StepEntityPendingConfirm, ActionConfirmEntities, Context{})
	if !ok {
		t.Fatal("expected confirm-entities to be valid from entity_pending_confirm")
	}
	if result.AutoChain != ActionStartLLM {
		t.Errorf("AutoChain = %s, want %s", result.AutoChain, ActionStartLLM)
	}
}

func TestApply_RetranslateAndRotateClearIntermediate(t *testing.T) {
	for _, action := range []Action{ActionRetranslate, ActionRotate} {
		result, ok := Apply(model.StepLLMTranslated, action, Context{})
		if !ok {
			t.Fatalf("Apply(llm_translated, %s) = not ok", action)
		}
		if !result.ClearsIntermediate {
			t.Errorf("Apply(llm_translated, %s).ClearsIntermediate = false, want true", action)
		}
	}
}

func TestApply_InvalidTransitionRejected(t *testing.T) {
	cases := []struct {
		from   model.ProcessingStep
		action Action
	}{
		{model.StepUploaded, ActionConfirm},
		{model.StepTranslating, ActionStartTranslate},
		{model.StepEntityPendingConfirm, ActionConfirm},
		{model.StepConfirmed, ActionStartLLM},
	}
	for _, c := range cases {
		if _, ok := Apply(c.from, c.action, Context{}); ok {
			t.Errorf("Apply(%s, %s) = ok, want rejected", c.from, c.action)
		}
	}
}

func TestCanDo_GlobalActionsAlwaysAllowed(t *testing.T) {
	steps := []model.ProcessingStep{
		model.StepUploaded, model.StepTranslating, model.StepTranslated,
		model.StepEntityPendingConfirm, model.StepLLMTranslated,
		model.StepConfirmed, model.StepFailed,
	}
	for _, step := range steps {
		if !CanDo(step, ActionRetranslate) {
			t.Errorf("CanDo(%s, retranslate) = false, want true", step)
		}
		if !CanDo(step, ActionRotate) {
			t.Errorf("CanDo(%s, rotate) = false, want true", step)
		}
	}
}

func TestClassification(t *testing.T) {
	if !IsProcessing(model.StepTranslating) || !IsProcessing(model.StepEntityRecognizing) ||
		!IsProcessing(model.StepLLMTranslating) || !IsProcessing(model.StepSplitting) {
		t.Error("processing states misclassified")
	}
	if IsProcessing(model.StepTranslated) {
		t.Error("translated should not be a processing state")
	}
	if !IsWaitingUser(model.StepEntityPendingConfirm) {
		t.Error("entity_pending_confirm should be a waiting-user state")
	}
	if !IsReviewable(model.StepTranslated) || !IsReviewable(model.StepEntityConfirmed) || !IsReviewable(model.StepLLMTranslated) {
		t.Error("reviewable states misclassified")
	}
	if !IsTerminalish(model.StepConfirmed) || !IsTerminalish(model.StepFailed) {
		t.Error("terminal-ish states misclassified")
	}
}

func TestNormalizeStep_LegacyLabels(t *testing.T) {
	tests := []struct {
		raw  string
		want model.ProcessingStep
	}{
		{"待翻译", model.StepUploaded},
		{"翻译中", model.StepTranslating},
		{"已翻译", model.StepTranslated},
		{"待确认", model.StepEntityPendingConfirm},
		{"已完成", model.StepConfirmed},
		{"失败", model.StepFailed},
		{string(model.StepLLMTranslated), model.StepLLMTranslated},
	}
	for _, tt := range tests {
		if got := NormalizeStep(tt.raw); got != tt.want {
			t.Errorf("NormalizeStep(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeStep_UnknownPassesThrough(t *testing.T) {
	got := NormalizeStep("some_unknown_status")
	if got != model.ProcessingStep("some_unknown_status") {
		t.Errorf("NormalizeStep(unknown) = %s, want passthrough", got)
	}
}

func TestAvailableActions_IncludesGlobalActions(t *testing.T) {
	actions := AvailableActions(model.StepTranslated)
	has := func(a Action) bool {
		for _, x := range actions {
			if x == a {
				return true
			}
		}
		return false
	}
	if !has(ActionStartEntityRecognize) || !has(ActionStartLLM) || !has(ActionConfirm) {
		t.Errorf("expected table actions present, got %v", actions)
	}
	if !has(ActionRetranslate) || !has(ActionRotate) {
		t.Errorf("expected global actions present, got %v", actions)
	}
}
