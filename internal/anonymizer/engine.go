// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package anonymizer rewrites text units so that detected personal data is
// replaced, encrypted or masked, and restores encrypted documents from the
// mapping ledger.
package anonymizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pii-anonymizer/internal/detector"
	"pii-anonymizer/internal/encryption"
	"pii-anonymizer/internal/ledger"
	"pii-anonymizer/internal/observability"
)

const engineComponent = "anonymization_engine"

// Stats counts entities across one Process call. Found includes entities
// that were skipped because they overlapped a rewritten span or could not be
// located.
type Stats struct {
	Found     int `json:"found"`
	Processed int `json:"processed"`
}

// Result is the outcome of Process.
type Result struct {
	Units      []string
	DocumentID string
	Stats      Stats
}

// ReverseResult is the outcome of Reverse. Failures lists placeholders left
// in place; it never aborts the call.
type ReverseResult struct {
	Units    []string
	Restored int
	Failures *ErrorCollection
}

// Engine orchestrates detection, substitution and ledger writes.
type Engine struct {
	detector  detector.Detector
	strategy  Strategy
	store     ledger.Store
	decrypter Decrypter
	observer  *observability.StandardObserver

	newDocumentID func() string
	newEntityID   func() string
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver routes engine events to observer.
func WithObserver(observer *observability.StandardObserver) Option {
	return func(e *Engine) { e.observer = observer }
}

// WithDecrypter sets the provider used by Reverse when the strategy is not
// an EncryptStrategy.
func WithDecrypter(d Decrypter) Option {
	return func(e *Engine) { e.decrypter = d }
}

// NewEngine builds an engine. The strategy fixes the mode for every call.
func NewEngine(det detector.Detector, strategy Strategy, store ledger.Store, opts ...Option) (*Engine, error) {
	if det == nil {
		return nil, NewProcessingError(ErrorConfiguration, "detector is required", "", engineComponent, nil)
	}
	if strategy == nil {
		return nil, NewProcessingError(ErrorConfiguration, "strategy is required", "", engineComponent, nil)
	}
	if store == nil {
		return nil, NewProcessingError(ErrorConfiguration, "ledger store is required", "", engineComponent, nil)
	}

	e := &Engine{
		detector:      det,
		strategy:      strategy,
		store:         store,
		newDocumentID: uuid.NewString,
		newEntityID:   newEntityID,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if es, ok := strategy.(*EncryptStrategy); ok {
		e.decrypter = es.Decrypter()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetComponentName returns the component name for observability
func (e *Engine) GetComponentName() string {
	return engineComponent
}

// Mode returns the engine's substitution mode.
func (e *Engine) Mode() Mode {
	return e.strategy.Mode()
}

// Process rewrites every unit and records the document under a fresh id.
// Ledger and encryption failures abort the call and leave nothing in the
// ledger for that document.
func (e *Engine) Process(units []string, sourceName, outputName string) (*Result, error) {
	docID := e.newDocumentID()
	finish := e.observer.StartTiming(engineComponent, "process", sourceName)

	var finishStep func(bool, string)
	if e.observer != nil && e.observer.DebugObserver != nil {
		finishStep = e.observer.DebugObserver.StartStep(engineComponent, "process "+e.Mode().String(), sourceName)
	}

	res, err := e.process(docID, units, sourceName, outputName)

	meta := map[string]interface{}{"document_id": docID, "mode": e.Mode().String(), "units": len(units)}
	if res != nil {
		meta["found"] = res.Stats.Found
		meta["processed"] = res.Stats.Processed
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	finish(err == nil, meta)
	if finishStep != nil {
		if res != nil {
			e.observer.DebugObserver.LogMetric(engineComponent, "found", res.Stats.Found)
			e.observer.DebugObserver.LogMetric(engineComponent, "processed", res.Stats.Processed)
		}
		finishStep(err == nil, fmt.Sprintf("document %s", docID))
	}
	return res, err
}

func (e *Engine) process(docID string, units []string, sourceName, outputName string) (*Result, error) {
	batch, err := ledger.NewBatch(e.store, ledger.DocumentRecord{
		ID:         docID,
		SourceName: sourceName,
		OutputName: outputName,
		Mode:       e.Mode().ledgerMode(),
		CreatedAt:  e.now(),
	})
	if err != nil {
		return nil, NewProcessingError(ErrorLedgerWrite, "record document", docID, engineComponent, err)
	}

	res := &Result{Units: make([]string, len(units)), DocumentID: docID}
	for i, unit := range units {
		out, stats, err := e.processUnit(docID, unit, batch)
		if err != nil {
			return nil, err
		}
		res.Units[i] = out
		res.Stats.Found += stats.Found
		res.Stats.Processed += stats.Processed
	}

	// The document and its mappings land together or not at all.
	if err := batch.Commit(); err != nil {
		return nil, NewProcessingError(ErrorLedgerWrite, "commit ledger", docID, engineComponent, err)
	}
	return res, nil
}

// processUnit rewrites one unit from the rightmost entity to the leftmost so
// that offsets of entities not yet rewritten stay valid.
func (e *Engine) processUnit(docID, text string, batch *ledger.Batch) (string, Stats, error) {
	var stats Stats
	entities, err := e.detector.Detect(text)
	if err != nil {
		return "", stats, NewProcessingError(ErrorDetection, "detect entities", docID, e.detector.GetComponentName(), err)
	}
	stats.Found = len(entities)
	e.observer.LogOperation(observability.StandardObservabilityData{
		Component:  e.detector.GetComponentName(),
		Operation:  "detect",
		Target:     docID,
		Success:    true,
		MatchCount: len(entities),
	})
	if len(entities) == 0 {
		return text, stats, nil
	}

	runes := []rune(text)
	for i := range entities {
		if !entities[i].Resolved() {
			entities[i] = locate(text, entities[i])
		}
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start > entities[j].Start
	})

	// floor is the leftmost rune already rewritten; nothing may reach past it.
	floor := len(runes)
	for _, ent := range entities {
		if reason := e.skipReason(runes, ent, floor); reason != "" {
			e.observer.LogEvent(engineComponent, "skip_entity", true, map[string]interface{}{
				"document_id": docID,
				"category":    string(ent.Category),
				"start":       ent.Start,
				"end":         ent.End,
				"reason":      reason,
			})
			continue
		}

		sub := Substitution{DocumentID: docID, EntityID: e.newEntityID(), Entity: ent}
		value, err := e.strategy.ProduceValue(sub)
		if err != nil {
			return "", stats, err
		}
		sub.Value = value
		if err := e.strategy.OnSubstitute(sub, batch); err != nil {
			return "", stats, err
		}

		spliced := make([]rune, 0, len(runes)-(ent.End-ent.Start)+utf8.RuneCountInString(value))
		spliced = append(spliced, runes[:ent.Start]...)
		spliced = append(spliced, []rune(value)...)
		spliced = append(spliced, runes[ent.End:]...)
		runes = spliced
		floor = ent.Start
		stats.Processed++

		if e.observer.Level() == observability.ObservabilityDebug {
			e.observer.LogEvent(engineComponent, "substitute", true, map[string]interface{}{
				"document_id": docID,
				"entity_id":   sub.EntityID,
				"category":    string(ent.Category),
				"start":       ent.Start,
				"end":         ent.End,
			})
		}
	}
	return string(runes), stats, nil
}

// skipReason returns why ent cannot be rewritten in runes, or "".
func (e *Engine) skipReason(runes []rune, ent detector.Entity, floor int) string {
	switch {
	case !ent.Resolved():
		return "not_found"
	case ent.End > len(runes) || ent.End > floor:
		return "overlap"
	case string(runes[ent.Start:ent.End]) != ent.Text:
		return "stale_offsets"
	default:
		return ""
	}
}

// locate resolves an entity without offsets by finding its text verbatim.
func locate(text string, ent detector.Entity) detector.Entity {
	if ent.Text == "" {
		return ent
	}
	idx := strings.Index(text, ent.Text)
	if idx < 0 {
		return ent
	}
	ent.Start = utf8.RuneCountInString(text[:idx])
	ent.End = ent.Start + utf8.RuneCountInString(ent.Text)
	return ent
}

// Reverse restores the placeholders of an encrypt-mode document. A missing
// mapping or a failed decrypt leaves the placeholder and is reported in
// ReverseResult.Failures.
func (e *Engine) Reverse(units []string, documentID string) (*ReverseResult, error) {
	doc, ok, err := e.store.Document(documentID)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w %q", ledger.ErrUnknownDocument, documentID)
	}
	if doc.Mode != ledger.ModeEncrypt {
		return nil, fmt.Errorf("document %s (%s): %w", documentID, doc.Mode, ErrReverseUnsupported)
	}
	if e.decrypter == nil {
		return nil, NewProcessingError(ErrorConfiguration, "no decrypter configured", documentID, engineComponent, nil)
	}

	finish := e.observer.StartTiming(engineComponent, "reverse", documentID)
	res := &ReverseResult{Units: make([]string, len(units)), Failures: NewErrorCollection()}

	var fatal error
	for i, unit := range units {
		res.Units[i] = placeholderPattern.ReplaceAllStringFunc(unit, func(match string) string {
			if fatal != nil {
				return match
			}
			id := normalizeEntityID(placeholderPattern.FindStringSubmatch(match)[1])
			plain, err := e.restore(documentID, id)
			if err != nil {
				var pe *ProcessingError
				if !errors.As(err, &pe) || !pe.Recoverable {
					fatal = err
					return match
				}
				res.Failures.Add(*pe)
				e.observer.LogEvent(engineComponent, "reverse_placeholder", false, map[string]interface{}{
					"document_id": documentID,
					"entity_id":   id,
					"reason":      pe.Type.String(),
				})
				return match
			}
			res.Restored++
			return plain
		})
		if fatal != nil {
			break
		}
	}

	meta := map[string]interface{}{"restored": res.Restored, "failures": res.Failures.Count()}
	if fatal != nil {
		meta["error"] = fatal.Error()
		finish(false, meta)
		return nil, fmt.Errorf("reverse document %s: %w", documentID, fatal)
	}
	finish(true, meta)
	return res, nil
}

// restore returns the plaintext of one placeholder. A recoverable
// *ProcessingError is a per-placeholder failure; anything else aborts Reverse.
func (e *Engine) restore(documentID, entityID string) (string, error) {
	rec, ok, err := e.store.GetMapping(entityID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewProcessingError(ErrorUnresolved, "no mapping for "+entityID, documentID, engineComponent, nil)
	}
	if rec.DocumentID != documentID {
		return "", NewProcessingError(ErrorUnresolved, fmt.Sprintf("mapping %s belongs to document %s", entityID, rec.DocumentID), documentID, engineComponent, nil)
	}
	if rec.CiphertextToken == "" {
		return "", NewProcessingError(ErrorUnresolved, "mapping "+entityID+" holds no ciphertext", documentID, engineComponent, nil)
	}
	plain, err := e.decrypter.Decrypt(rec.CiphertextToken)
	if err != nil {
		pe := NewProcessingError(ErrorEncryption, "decrypt "+entityID, documentID, engineComponent, err)
		// Only a rejected token is confined to its placeholder.
		pe.Recoverable = encryption.IsDecryptionError(err)
		return "", pe
	}
	return plain, nil
}
