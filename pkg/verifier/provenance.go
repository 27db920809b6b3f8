package verifier

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/secure-systems-lab/go-securesystemslib/dsse"
)

// inTotoPayloadType is the DSSE payload type of in-toto statements.
const inTotoPayloadType = "application/vnd.in-toto+json"

var errNoStatements = errors.New("no in-toto statements found")

// statement is the subset of an in-toto statement needed for the subject check.
type statement struct {
	PredicateType string    `json:"predicateType"`
	Subject       []subject `json:"subject"`
	Predicate     struct {
		Builder struct {
			ID string `json:"id"`
		} `json:"builder"`
		RunDetails struct {
			Builder struct {
				ID string `json:"id"`
			} `json:"builder"`
		} `json:"runDetails"`
	} `json:"predicate"`
}

type subject struct {
	Name   string            `json:"name"`
	Digest map[string]string `json:"digest"`
}

func (s *statement) builderID() string {
	if id := s.Predicate.RunDetails.Builder.ID; id != "" {
		return id
	}
	return s.Predicate.Builder.ID
}

// sigstoreBundle wraps a DSSE envelope in the Sigstore bundle format.
type sigstoreBundle struct {
	MediaType    string         `json:"mediaType"`
	DSSEEnvelope *dsse.Envelope `json:"dsseEnvelope"`
}

// readStatements decodes the in-toto statements of a provenance document.
// The document is JSON lines, each a DSSE envelope or a Sigstore bundle.
// Signatures are not checked here.
func readStatements(path string) ([]statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var stmts []statement

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		stmt, err := parseStatement(line)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, *stmt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(stmts) == 0 {
		return nil, errNoStatements
	}

	return stmts, nil
}

func parseStatement(line []byte) (*statement, error) {
	var envelope *dsse.Envelope

	var bundle sigstoreBundle
	if err := json.Unmarshal(line, &bundle); err == nil && bundle.DSSEEnvelope != nil && bundle.DSSEEnvelope.Payload != "" {
		envelope = bundle.DSSEEnvelope
	} else {
		envelope = &dsse.Envelope{}
		if err := json.Unmarshal(line, envelope); err != nil {
			return nil, fmt.Errorf("parse envelope: %w", err)
		}
	}

	if envelope.PayloadType != inTotoPayloadType {
		return nil, fmt.Errorf("unexpected payload type %q", envelope.PayloadType)
	}

	payload, err := envelope.DecodeB64Payload()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var stmt statement
	if err := json.Unmarshal(payload, &stmt); err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}

	return &stmt, nil
}

// hasSubject reports whether any statement lists a subject with the given
// sha256 hex digest.
func hasSubject(stmts []statement, sha256Hex string) bool {
	for _, stmt := range stmts {
		for _, s := range stmt.Subject {
			if s.Digest["sha256"] == sha256Hex {
				return true
			}
		}
	}
	return false
}
