package limits

import (
	"errors"
	"testing"
)

// TestMaxAsymmetricPayloadCalculation verifies the PKCS#1 v1.5 bound for a 2048-bit key
func TestMaxAsymmetricPayloadCalculation(t *testing.T) {
	if MaxAsymmetricPayload != 245 {
		t.Errorf("MaxAsymmetricPayload = %d, want 245", MaxAsymmetricPayload)
	}
}

func TestValidateFrameLength(t *testing.T) {
	tests := []struct {
		name    string
		length  uint32
		wantErr error
	}{
		{"zero length", 0, ErrFrameEmpty},
		{"one byte", 1, nil},
		{"at limit", MaxFrameSize, nil},
		{"over limit", MaxFrameSize + 1, ErrFrameTooLarge},
		{"max uint32", ^uint32(0), ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrameLength(tt.length)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateFrameLength(%d) = %v, want nil", tt.length, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFrameLength(%d) = %v, want %v", tt.length, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePayloadSize(t *testing.T) {
	if err := ValidatePayloadSize(make([]byte, MaxAsymmetricPayload), MaxAsymmetricPayload); err != nil {
		t.Errorf("payload at limit rejected: %v", err)
	}
	err := ValidatePayloadSize(make([]byte, MaxAsymmetricPayload+1), MaxAsymmetricPayload)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversize payload error = %v, want ErrPayloadTooLarge", err)
	}
}
