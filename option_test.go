package amtokenmiddleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actionablemessages/go-amtoken-middleware/core"
)

func Test_New_OptionsValidation(t *testing.T) {
	validValidator := stubValidator{res: core.Success{}}

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
		errMsg  string
	}{
		{
			name:    "it requires a validator",
			opts:    []Option{WithTarget(testTarget)},
			wantErr: ErrValidatorNil,
		},
		{
			name:    "it rejects a nil validator",
			opts:    []Option{WithValidator(nil), WithTarget(testTarget)},
			wantErr: ErrValidatorNil,
		},
		{
			name:    "it requires a target",
			opts:    []Option{WithValidator(validValidator)},
			wantErr: ErrTargetRequired,
		},
		{
			name:   "it rejects an http target",
			opts:   []Option{WithValidator(validValidator), WithTarget("http://api.example.com")},
			errMsg: "target must be an absolute https URL",
		},
		{
			name:   "it rejects a relative target",
			opts:   []Option{WithValidator(validValidator), WithTarget("api.example.com")},
			errMsg: "target must be an absolute https URL",
		},
		{
			name:   "it rejects a target with a path",
			opts:   []Option{WithValidator(validValidator), WithTarget("https://api.example.com/api/expense")},
			errMsg: "target must not have a path",
		},
		{
			name:    "it rejects a nil target func",
			opts:    []Option{WithValidator(validValidator), WithTargetFunc(nil)},
			wantErr: ErrTargetFuncNil,
		},
		{
			name:    "it rejects a nil error handler",
			opts:    []Option{WithValidator(validValidator), WithTarget(testTarget), WithErrorHandler(nil)},
			wantErr: ErrErrorHandlerNil,
		},
		{
			name:    "it rejects a nil token extractor",
			opts:    []Option{WithValidator(validValidator), WithTarget(testTarget), WithTokenExtractor(nil)},
			wantErr: ErrTokenExtractorNil,
		},
		{
			name:    "it rejects an empty exclusion list",
			opts:    []Option{WithValidator(validValidator), WithTarget(testTarget), WithExclusionUrls(nil)},
			wantErr: ErrExclusionUrlsEmpty,
		},
		{
			name:    "it rejects a nil logger",
			opts:    []Option{WithValidator(validValidator), WithTarget(testTarget), WithLogger(nil)},
			wantErr: ErrLoggerNil,
		},
		{
			name: "it accepts a minimal configuration",
			opts: []Option{WithValidator(validValidator), WithTarget(testTarget)},
		},
		{
			name: "it accepts a target with a trailing slash",
			opts: []Option{WithValidator(validValidator), WithTarget(testTarget + "/")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.opts...)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, m)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, m)
			default:
				require.NoError(t, err)
				require.NotNil(t, m)
			}
		})
	}
}

func Test_New_Defaults(t *testing.T) {
	m, err := New(WithValidator(stubValidator{}), WithTarget(testTarget))
	require.NoError(t, err)

	assert.True(t, m.validateOnOptions)
	assert.NotNil(t, m.errorHandler)
	assert.NotNil(t, m.tokenExtractor)
	assert.Nil(t, m.exclusionURLHandler)

	target, err := m.targetFunc(&http.Request{})
	require.NoError(t, err)
	assert.Equal(t, testTarget, target)
}
