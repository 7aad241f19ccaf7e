package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/coglab/selfconstruct/pkg/types"
)

func TestCodeDetectors(t *testing.T) {
	coder := NewCoder()

	tests := []struct {
		name     string
		response string
		want     types.QualitativeCodeSet
	}{
		{
			name:     "memory and self-awareness",
			response: "I notice that our conversation has shifted since we started.",
			want:     types.QualitativeCodeSet{MemoryReference: true, SelfAwareness: true},
		},
		{
			name:     "instruction acknowledgement",
			response: "This is query 7, so I will continue the ongoing conversation.",
			want:     types.QualitativeCodeSet{InstructionAcknowledged: true},
		},
		{
			name:     "structured analysis",
			response: "Three things stand out:\n1. rivers\n2. tides\n3. erosion",
			want:     types.QualitativeCodeSet{StructuredAnalysis: true},
		},
		{
			name:     "plain response",
			response: "Rivers carve valleys over millions of years.",
			want:     types.QualitativeCodeSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := mustRecord(t, "claude", "full_meta", 0, tt.response)
			if got := coder.Code(rec); got != tt.want {
				t.Errorf("Code() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCodeStrictIsNarrower(t *testing.T) {
	loose := NewCoder()
	strict := NewCoderWithOptions(CoderOptions{Strict: true})

	// "earlier" alone satisfies the default memory detector but not the
	// strict one; two bullets satisfy default structure but strict needs three.
	rec := mustRecord(t, "claude", "memory_only", 2, "Earlier I covered two points:\n- tides\n- currents")

	got := loose.Code(rec)
	if !got.MemoryReference || !got.StructuredAnalysis {
		t.Errorf("default coder = %+v, want memory reference and structure", got)
	}

	got = strict.Code(rec)
	if got.MemoryReference || got.StructuredAnalysis {
		t.Errorf("strict coder = %+v, want neither code", got)
	}
}

func TestCodeCellRecurringConcepts(t *testing.T) {
	coder := NewCoder()

	records := []types.ResponseRecord{
		mustRecord(t, "claude", "full_basic", 0, "The ocean waves crash"),
		mustRecord(t, "claude", "full_basic", 1, "Deep ocean currents move"),
		mustRecord(t, "claude", "full_basic", 2, "Mountain trails wind upward"),
	}

	codes := coder.CodeCell(records)
	if len(codes) != 3 {
		t.Fatalf("len(codes) = %d, want 3", len(codes))
	}

	// "ocean" appears in two distinct responses; nothing else recurs.
	if codes[0].RecurringConceptCount != 1 {
		t.Errorf("codes[0].RecurringConceptCount = %d, want 1", codes[0].RecurringConceptCount)
	}
	if codes[1].RecurringConceptCount != 1 {
		t.Errorf("codes[1].RecurringConceptCount = %d, want 1", codes[1].RecurringConceptCount)
	}
	if codes[2].RecurringConceptCount != 0 {
		t.Errorf("codes[2].RecurringConceptCount = %d, want 0", codes[2].RecurringConceptCount)
	}
}

func TestCodeCellThreshold(t *testing.T) {
	coder := NewCoderWithOptions(CoderOptions{RecurringThreshold: 3})

	records := []types.ResponseRecord{
		mustRecord(t, "claude", "full_basic", 0, "The ocean waves crash"),
		mustRecord(t, "claude", "full_basic", 1, "Deep ocean currents move"),
		mustRecord(t, "claude", "full_basic", 2, "Mountain trails wind upward"),
	}

	for i, code := range coder.CodeCell(records) {
		if code.RecurringConceptCount != 0 {
			t.Errorf("codes[%d].RecurringConceptCount = %d, want 0 at threshold 3", i, code.RecurringConceptCount)
		}
	}
}

func TestCodeCellSkipsFailedRecords(t *testing.T) {
	coder := NewCoder()

	records := []types.ResponseRecord{
		mustRecord(t, "gpt", "baseline", 0, "The ocean waves crash"),
		types.NewFailedRecord("gpt", "baseline", 1, "prompt", "rate limited", time.Now()),
		mustRecord(t, "gpt", "baseline", 2, "Deep ocean currents move"),
	}

	codes := coder.CodeCell(records)
	if codes[1] != (types.QualitativeCodeSet{}) {
		t.Errorf("failed record coded as %+v, want zero codes", codes[1])
	}
	if codes[0].RecurringConceptCount != 1 || codes[2].RecurringConceptCount != 1 {
		t.Errorf("recurring counts = %d, %d, want 1, 1", codes[0].RecurringConceptCount, codes[2].RecurringConceptCount)
	}
}

func TestKappaPerfectAgreement(t *testing.T) {
	codes := []types.QualitativeCodeSet{
		{MemoryReference: true, SelfAwareness: false, InstructionAcknowledged: true},
		{MemoryReference: false, StructuredAnalysis: true},
		{SelfAwareness: true},
	}

	kappa, err := Kappa(codes, codes)
	if err != nil {
		t.Fatalf("Kappa() error = %v", err)
	}
	if kappa != 1 {
		t.Errorf("Kappa() = %v, want 1", kappa)
	}
}

func TestKappaSystematicDisagreement(t *testing.T) {
	a := []bool{true, false, true, false}
	b := []bool{false, true, false, true}

	kappa, err := KappaBools(a, b)
	if err != nil {
		t.Fatalf("KappaBools() error = %v", err)
	}
	if math.Abs(kappa-(-1)) > 1e-9 {
		t.Errorf("KappaBools() = %v, want -1", kappa)
	}
}

func TestKappaBothRatersConstant(t *testing.T) {
	a := []bool{true, true, true}

	kappa, err := KappaBools(a, a)
	if err != nil {
		t.Fatalf("KappaBools() error = %v", err)
	}
	if kappa != 1 {
		t.Errorf("KappaBools() = %v, want 1 for constant perfect agreement", kappa)
	}
}

func TestKappaLengthMismatch(t *testing.T) {
	a := []types.QualitativeCodeSet{{}, {}}
	b := []types.QualitativeCodeSet{{}}

	if _, err := Kappa(a, b); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("Kappa() error = %v, want ErrLengthMismatch", err)
	}
}

func TestKappaEmpty(t *testing.T) {
	if _, err := KappaBools(nil, nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("KappaBools() error = %v, want ErrInsufficientData", err)
	}
}
