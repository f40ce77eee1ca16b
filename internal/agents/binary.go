package agents

import (
	"encoding/base64"

	"github.com/MarkChuCarroll/polytope-scm-sub000/internal/errs"
)

// Binary is the content of an artifact of type "binary" (§3): an opaque
// byte array. Binary content always conflicts under merge.
type Binary struct {
	Bytes []byte
}

// BinaryAgent never actually merges: it always emits a single conflict and
// keeps the target content in the proposal (§4.2).
type BinaryAgent struct{}

func (BinaryAgent) Encode(content any) (string, error) {
	b, ok := content.(*Binary)
	if !ok {
		return "", errs.TypeErrorf("binary agent cannot encode %T", content)
	}
	return base64.StdEncoding.EncodeToString(b.Bytes), nil
}

func (BinaryAgent) Decode(encoded string) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.Wrap(errs.Parsing, err, "decoding binary content")
	}
	return &Binary{Bytes: raw}, nil
}

func (BinaryAgent) Merge(artifactID, ancestorEnc, sourceEnc, targetEnc string) (Result, error) {
	return Result{
		Proposal: targetEnc,
		Conflicts: []Conflict{{
			ArtifactID: artifactID, ArtifactType: "binary",
			SourceVer: sourceEnc, TargetVer: targetEnc,
			Details: "binary artifacts cannot be merged",
		}},
	}, nil
}

var _ Agent = (*BinaryAgent)(nil)
