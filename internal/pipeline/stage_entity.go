package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/freedkr/moonshot-translate/internal/model"
	"github.com/freedkr/moonshot-translate/internal/pipeline/statemachine"
)

// runEntityStage drives entity_recognizing (spec §4.4.3). A recoverable
// provider error falls the material back to translated (er-recoverable-fail)
// rather than failing it outright, since entity recognition is an
// optional enrichment step; a fatal error still fails the material.
//
// Standard mode returns bare entities (chinese_name only); a follow-up
// LLM call proposes an english_name for each, tolerating failure
// silently. Deep mode returns {chinese_name, english_name, source,
// confidence} already, so the result auto-confirms into
// entity_user_edits and the statemachine auto-chains straight past the
// entity_pending_confirm gate into the LLM stage.
func runEntityStage(ctx context.Context, o *Orchestrator, m *model.Material) (statemachine.Action, func(*model.Material), error) {
	mode := m.EntityRecognitionMode
	if mode == "" {
		mode = model.EntityModeStandard
	}

	start := time.Now()
	result, err := o.entity.Recognize(ctx, m.TranslationTextInfo, mode)
	if o.entityManager != nil {
		o.entityManager.RecordResult(o.entity.Name(), time.Since(start), err)
	}
	if err != nil {
		if isRecoverable(err) {
			return statemachine.ActionEntityRecoverableFail, func(mat *model.Material) {
				mat.EntityRecognitionError = err.Error()
			}, err
		}
		return statemachine.ActionEntityFatal, func(mat *model.Material) {
			mat.EntityRecognitionError = err.Error()
		}, err
	}

	entities := extractEntities(result)

	if mode == model.EntityModeDeep {
		guidance, edits := autoConfirmDeepEntities(entities)
		return statemachine.ActionEntityRecognizeOK, func(mat *model.Material) {
			mat.EntityRecognitionResult = result
			mat.EntityRecognitionError = ""
			mat.Progress = 70
			mat.EntityRecognitionConfirmed = true
			mat.EntityUserEdits = &model.EntityUserEdits{TranslationGuidance: guidance, Entities: edits}
		}, nil
	}

	translateEntityNames(ctx, o, entities)
	return statemachine.ActionEntityRecognizeOK, func(mat *model.Material) {
		mat.EntityRecognitionResult = result
		mat.EntityRecognitionError = ""
		mat.Progress = 70
	}, nil
}

// extractEntities pulls the provider's entities array out of its
// generic result map, tolerating any shape that isn't exactly
// []interface{} of map[string]interface{} by skipping it.
func extractEntities(result map[string]interface{}) []map[string]interface{} {
	raw, _ := result["entities"].([]interface{})
	out := make([]map[string]interface{}, 0, len(raw))
	for _, e := range raw {
		if em, ok := e.(map[string]interface{}); ok {
			out = append(out, em)
		}
	}
	return out
}

// classifyEntityType buckets a deep-mode entity into one of
// TranslationGuidance's four sections, defaulting to "term" for any
// type the provider doesn't label as a person/location/organization.
func classifyEntityType(e map[string]interface{}) string {
	switch t, _ := e["type"].(string); t {
	case "person", "persons":
		return "person"
	case "location", "locations", "place":
		return "location"
	case "organization", "organizations", "org":
		return "organization"
	default:
		return "term"
	}
}

// autoConfirmDeepEntities builds the guidance map deep mode would
// otherwise require a human to confirm by hand (spec §4.4.3 point 4).
func autoConfirmDeepEntities(entities []map[string]interface{}) (model.TranslationGuidance, []map[string]interface{}) {
	guidance := model.TranslationGuidance{
		Persons:       map[string]string{},
		Locations:     map[string]string{},
		Organizations: map[string]string{},
		Terms:         map[string]string{},
	}
	for _, e := range entities {
		chinese, _ := e["chinese_name"].(string)
		english, _ := e["english_name"].(string)
		if chinese == "" || english == "" {
			continue
		}
		switch classifyEntityType(e) {
		case "person":
			guidance.Persons[chinese] = english
		case "location":
			guidance.Locations[chinese] = english
		case "organization":
			guidance.Organizations[chinese] = english
		default:
			guidance.Terms[chinese] = english
		}
	}
	return guidance, entities
}

// translateEntityNames proposes an english_name for each distinct
// chinese_name by reusing the LLM client's region-refinement call
// (spec §4.4.3 point 4, standard mode). Mutates entities in place;
// failures are logged and tolerated, leaving english_name unset.
func translateEntityNames(ctx context.Context, o *Orchestrator, entities []map[string]interface{}) {
	if len(entities) == 0 || o.llm == nil {
		return
	}

	seen := make(map[string]bool, len(entities))
	regions := make([]model.Region, 0, len(entities))
	for _, e := range entities {
		chinese, _ := e["chinese_name"].(string)
		if chinese == "" || seen[chinese] {
			continue
		}
		seen[chinese] = true
		regions = append(regions, model.Region{ID: chinese, Src: chinese})
	}
	if len(regions) == 0 {
		return
	}

	start := time.Now()
	translated, err := o.llm.RefineBatch(ctx, regions, nil)
	if o.llmManager != nil {
		o.llmManager.RecordResult(o.llm.Name(), time.Since(start), err)
	}
	if err != nil {
		log.Printf("pipeline: entity name translation failed, leaving english_name unset: %v", err)
		return
	}

	englishByChinese := make(map[string]string, len(translated))
	for _, t := range translated {
		englishByChinese[t.ID] = t.Translation
	}
	for _, e := range entities {
		chinese, _ := e["chinese_name"].(string)
		if english, ok := englishByChinese[chinese]; ok {
			e["english_name"] = english
		}
	}
}
