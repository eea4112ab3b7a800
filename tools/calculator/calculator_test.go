package calculator_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/localagent/mocks/mocklauncher"
	"github.com/effective-security/localagent/pkg/llmutils"
	"github.com/effective-security/localagent/tools"
	"github.com/effective-security/localagent/tools/calculator"
	"github.com/effective-security/localagent/tools/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_Tool(t *testing.T) {
	ctx := context.Background()

	tcases := []struct {
		goos string
		cmd  launcher.Command
	}{
		{"windows", launcher.Command{Name: "cmd", Args: []string{"/c", "start", "calc.exe"}}},
		{"darwin", launcher.Command{Name: "open", Args: []string{"-a", "Calculator"}}},
		{"linux", launcher.Command{Name: "gnome-calculator"}},
	}

	for _, tc := range tcases {
		t.Run(tc.goos, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := mocklauncher.NewMockRunner(ctrl)
			task := mocklauncher.NewMockTask(ctrl)

			runner.EXPECT().Start(gomock.Any(), tc.cmd).Return(task, nil).Times(1)
			task.EXPECT().Wait(gomock.Any(), time.Second).Return(&launcher.Result{
				Command: tc.cmd.String(),
				Started: true,
				Running: true,
			}).Times(1)

			tool, err := calculator.New(launcher.NewOpener(launcher.ForPlatform(tc.goos), runner, time.Second))
			require.NoError(t, err)

			out, err := tool.Call(ctx, "{}")
			require.NoError(t, err)
			assert.Equal(t, "Calculator app opened", out)
		})
	}
}

func Test_Tool_Definition(t *testing.T) {
	ctrl := gomock.NewController(t)
	tool, err := calculator.New(launcher.NewOpener(launcher.Linux{}, mocklauncher.NewMockRunner(ctrl), 0))
	require.NoError(t, err)

	assert.Equal(t, calculator.ToolName, tool.Name())
	assert.Equal(t, "Open the calculator app", tool.Description())
	assert.JSONEq(t, `{"type":"object","properties":{},"additionalProperties":false}`, llmutils.ToJSON(tool.Parameters()))

	_, err = calculator.New(nil)
	assert.EqualError(t, err, "launcher is required")
}

func Test_Tool_Strict(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no launch expected
	runner := mocklauncher.NewMockRunner(ctrl)

	tool, err := calculator.New(launcher.NewOpener(launcher.Linux{}, runner, 0))
	require.NoError(t, err)

	_, err = tool.Call(context.Background(), `{"expression":"2+2"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrInvalidArgument))
	assert.EqualError(t, err, `invalid argument "expression" for open_calculator: unexpected field`)

	_, err = tool.Call(context.Background(), `calculator`)
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
}

func Test_Tool_Unsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no calls expected: the controller fails the test on any Start
	runner := mocklauncher.NewMockRunner(ctrl)

	tool, err := calculator.New(launcher.NewOpener(launcher.ForPlatform("plan9"), runner, 0))
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Unsupported operating system", out)

	res, err := tool.Run(context.Background(), &calculator.Request{})
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
}

func Test_Tool_LaunchFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocklauncher.NewMockRunner(ctrl)
	runner.EXPECT().Start(gomock.Any(), gomock.Any()).
		Return(nil, errors.New(`exec: "gnome-calculator": executable file not found in $PATH`))

	tool, err := calculator.New(launcher.NewOpener(launcher.Linux{}, runner, 0))
	require.NoError(t, err)

	_, err = tool.Call(context.Background(), "{}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, launcher.ErrLaunchFailed))
	assert.EqualError(t, err, `failed to launch gnome-calculator: exec: "gnome-calculator": executable file not found in $PATH`)
}
