package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "   ", want: nil},
		{name: "default grabber", input: "grim -t jpeg -", want: []string{"grim", "-t", "jpeg", "-"}},
		{name: "monitor placeholder kept", input: "grim -o {monitor} -t png -", want: []string{"grim", "-o", "{monitor}", "-t", "png", "-"}},
		{name: "double quoted spaces", input: `shot --title "focused window"`, want: []string{"shot", "--title", "focused window"}},
		{name: "single quotes keep backslash", input: `shot 'a\b'`, want: []string{"shot", `a\b`}},
		{name: "escaped quote in double quotes", input: `shot "a\"b"`, want: []string{"shot", `a"b`}},
		{name: "escaped space", input: `shot my\ file`, want: []string{"shot", "my file"}},
		{name: "empty quoted argument", input: `shot ""`, want: []string{"shot", ""}},
		{name: "unterminated quote", input: `shot "oops`, wantErr: `unterminated " quote opened at column 6`},
		{name: "dangling backslash", input: `shot -\`, wantErr: "dangling backslash"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitCommand(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDefaultCaptureCommandMatchesItsRawForm(t *testing.T) {
	cmd := Default().Frames.CaptureCmd
	argv, err := splitCommand(cmd.Raw)
	require.NoError(t, err)
	require.Equal(t, argv, cmd.Argv)
}
