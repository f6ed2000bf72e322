package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerdictPercentsAreIndependent(t *testing.T) {
	v := Verdict{Label: LabelFake, RealConfidence: 0.124, FakeConfidence: 0.885}
	require.Equal(t, 12, v.RealPercent())
	require.Equal(t, 89, v.FakePercent())
	require.True(t, v.IsFake())
}

func TestVerdictHeadline(t *testing.T) {
	require.Equal(t, "⚠️ POTENTIAL DEEPFAKE", Verdict{Label: LabelFake}.Headline())
	require.Equal(t, "✅ LIKELY REAL", Verdict{Label: LabelReal}.Headline())
	require.Equal(t, "❔ UNABLE TO DETERMINE", UnknownVerdict().Headline())
}
