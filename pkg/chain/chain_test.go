package chain_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/promptchain/pkg/chain"
)

// scripted returns fixed responses in order and records every prompt it saw.
type scripted struct {
	responses []string
	usage     *chain.Usage
	failAt    int
	seen      []string
}

func (s *scripted) Invoke(_ context.Context, _ string, prompt string) (chain.Completion, error) {
	s.seen = append(s.seen, prompt)
	n := len(s.seen)
	if n == s.failAt {
		return chain.Completion{}, errors.New("rate limited")
	}
	text := fmt.Sprintf("resp-%d", n)
	if n <= len(s.responses) {
		text = s.responses[n-1]
	}
	return chain.Completion{Text: text, Usage: s.usage}, nil
}

func echo() chain.Invoker {
	return chain.InvokerFunc(func(_ context.Context, model string, prompt string) (chain.Completion, error) {
		return chain.Completion{Text: model + ":" + prompt}, nil
	})
}

func TestRunStepsAreContiguous(t *testing.T) {
	prompts := chain.Prompts("a", "b {{previous output}}", "c {{output[0]}}", "d")
	res, err := chain.Run(context.Background(), nil, "m", echo(), prompts, chain.RunOptions{IncludeTrace: true})
	require.NoError(t, err)
	require.NotNil(t, res.Trace)
	require.Len(t, res.Trace.Steps, len(prompts))
	for i, s := range res.Trace.Steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, chain.DefaultRole, s.Role)
	}
	assert.Len(t, res.Prompts, len(prompts))
	assert.Len(t, res.Tokens, len(prompts))
}

func TestRunIsIdempotentForDeterministicInvoker(t *testing.T) {
	vars := chain.Vars{"topic": "Gravity", "n": 3}
	prompts := []chain.Prompt{
		{Role: "Tutor", Template: "Explain {{topic}} in {{n}} points"},
		{Role: "Student", Template: "Question about: {{output[-1]}}"},
	}
	opts := chain.RunOptions{IncludeTrace: true, Name: "socratic"}

	first, err := chain.Run(context.Background(), vars, "m", echo(), prompts, opts)
	require.NoError(t, err)
	second, err := chain.Run(context.Background(), vars, "m", echo(), prompts, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Prompts, second.Prompts)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRunContextSubstitution(t *testing.T) {
	res, err := chain.Run(context.Background(), chain.Vars{"topic": "Gravity"}, "m", echo(),
		chain.Prompts("Tell me about {topic}."), chain.RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, res.Prompts[0], "Gravity")
	assert.Equal(t, "Tell me about Gravity.", res.Prompts[0])
}

func TestRunChainedSubstitution(t *testing.T) {
	inv := &scripted{responses: []string{"desc-of-X", "summary"}}
	res, err := chain.Run(context.Background(), chain.Vars{"X": "entropy"}, "m", inv,
		chain.Prompts("Describe {X}", "Summarize: {previous output}"), chain.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Describe entropy", inv.seen[0])
	assert.Contains(t, res.Prompts[1], "desc-of-X")
	assert.Equal(t, "summary", res.Final.String())
}

func TestRunForwardReferenceFailsBeforeInvoke(t *testing.T) {
	inv := &scripted{}
	prompts := chain.Prompts("first", "second {{output[1]}}", "third")
	res, err := chain.Run(context.Background(), nil, "m", inv, prompts, chain.RunOptions{})

	var tre *chain.TemplateResolutionError
	require.ErrorAs(t, err, &tre)
	assert.Equal(t, 2, tre.Step)
	assert.Equal(t, "output[1]", tre.Ref)
	assert.Len(t, inv.seen, 1, "step 2 must not reach the invoker")
	require.NotNil(t, tre.Trace)
	assert.Len(t, tre.Trace.Steps, 1)
	assert.Len(t, res.Prompts, 1)
}

func TestRunMissingContextKey(t *testing.T) {
	_, err := chain.Run(context.Background(), chain.Vars{"a": 1}, "m", echo(),
		chain.Prompts("{{a}} and {{b}}"), chain.RunOptions{})

	var tre *chain.TemplateResolutionError
	require.ErrorAs(t, err, &tre)
	assert.Equal(t, "b", tre.Ref)
	assert.Contains(t, err.Error(), `"b"`)
	assert.Empty(t, tre.Trace.Steps)
}

func TestRunTokenAccumulation(t *testing.T) {
	inv := &scripted{usage: &chain.Usage{InputTokens: 3, OutputTokens: 4}}
	res, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("a", "b", "c"), chain.RunOptions{IncludeTrace: true})
	require.NoError(t, err)

	sum := 0
	for _, s := range res.Trace.Steps {
		assert.Equal(t, 7, s.Tokens)
		sum += s.Tokens
	}
	assert.Equal(t, sum, res.Trace.TotalTokens)
	assert.Equal(t, []int{7, 7, 7}, res.Tokens)
}

func TestRunEstimatesTokensWithoutUsage(t *testing.T) {
	calls := 0
	estimator := func(prompt, response string) int {
		calls++
		return len(prompt) + len(response)
	}
	inv := &scripted{responses: []string{"xyz"}}
	res, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("abcd"),
		chain.RunOptions{IncludeTrace: true, TokenEstimator: estimator})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, res.Trace.TotalTokens)

	assert.Equal(t, 2, chain.EstimateTokens("abcd", "xyz"))
}

func TestRunPartialFailure(t *testing.T) {
	inv := &scripted{failAt: 2}
	res, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("one", "two", "three"), chain.RunOptions{IncludeTrace: true})

	var mie *chain.ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, 2, mie.Step)
	assert.EqualError(t, errors.Unwrap(err), "rate limited")
	assert.Len(t, inv.seen, 2, "step 3 must never be invoked")

	tr, ok := chain.PartialTrace(err)
	require.True(t, ok)
	require.Len(t, tr.Steps, 1)
	assert.Equal(t, 1, tr.Steps[0].StepNumber)
	assert.Equal(t, 2, chain.FailedStep(err))
	assert.Nil(t, res.Trace)
	assert.Equal(t, []string{"one"}, res.Prompts)
}

func TestRunEndToEnd(t *testing.T) {
	vars := chain.Vars{"subjectA": "Music", "subjectB": "Math"}
	prompts := chain.Prompts(
		"Find 3 connections between {subjectA} and {subjectB}",
		"Explain why {previous output} matters",
		"Design a project using {subjectA} and {subjectB} based on {previous output}",
	)
	inv := &scripted{responses: []string{"rhythm, ratios, symmetry", "they shape perception", "build a fractal synth"}}

	res, err := chain.Run(context.Background(), vars, "m", inv, prompts, chain.RunOptions{IncludeTrace: true})
	require.NoError(t, err)
	require.Len(t, res.Trace.Steps, 3)
	assert.Equal(t, "build a fractal synth", res.Final.String())
	assert.Equal(t, res.Final, res.Trace.FinalResult)
	assert.Contains(t, res.Prompts[0], "Music")
	assert.Contains(t, res.Prompts[0], "Math")
	assert.Equal(t, "Design a project using Music and Math based on they shape perception", res.Prompts[2])
}

func TestRunStructuredResponses(t *testing.T) {
	inv := &scripted{responses: []string{
		"Here you go:\n```json\n{\"verdict\": \"guilty\", \"reasons\": [\"motive\", \"means\"], \"score\": 0.9}\n```",
		"ok",
	}}
	prompts := chain.Prompts("Judge", "Verdict was {{output[0].verdict}} with {{output[0].reasons}}")
	res, err := chain.Run(context.Background(), nil, "m", inv, prompts, chain.RunOptions{IncludeTrace: true})
	require.NoError(t, err)

	first := res.Trace.Steps[0].Response
	require.True(t, first.IsStructured())
	assert.Equal(t, []string{"verdict", "reasons", "score"}, first.Object().Keys())
	assert.Equal(t, `Verdict was guilty with ["motive","means"]`, res.Prompts[1])
}

func TestRunFinalFields(t *testing.T) {
	inv := &scripted{responses: []string{`{"draft": "x", "answer": 42, "notes": "y"}`}}
	res, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("q"),
		chain.RunOptions{FinalFields: []string{"answer", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":42}`, res.Final.String())
}

func TestRunKeepsMalformedJSONAsText(t *testing.T) {
	inv := &scripted{responses: []string{`{"a": 1,,}`}}
	var warned []chain.StepEvent
	obs := recordingObserver{after: &warned}
	res, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("q", "{{output[0]}}"),
		chain.RunOptions{IncludeTrace: true, Observer: obs})
	require.NoError(t, err)
	assert.False(t, res.Trace.Steps[0].Response.IsStructured())
	assert.Equal(t, `{"a": 1,,}`, res.Prompts[1])
	require.Len(t, res.Trace.Warnings, 1)
	require.NotNil(t, warned[0].Warning)
	assert.Equal(t, 1, warned[0].Warning.Step)
}

func TestRunNamedOutputs(t *testing.T) {
	inv := &scripted{responses: []string{"thesis text", "antithesis text"}}
	prompts := []chain.Prompt{
		{Role: "Pro", Name: "thesis", Template: "Argue for {{motion}}"},
		{Role: "Con", Name: "antithesis", Template: "Rebut: {{thesis}}"},
		{Role: "Judge", Template: "Weigh {{thesis}} against {{antithesis}}"},
	}
	res, err := chain.Run(context.Background(), chain.Vars{"motion": "tabs"}, "m", inv, prompts, chain.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Weigh thesis text against antithesis text", res.Prompts[2])
}

func TestRunRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	_, err := chain.Run(ctx, nil, "m", echo(), nil, chain.RunOptions{})
	assert.ErrorIs(t, err, chain.ErrEmptyChain)

	_, err = chain.Run(ctx, nil, "m", nil, chain.Prompts("a"), chain.RunOptions{})
	assert.ErrorIs(t, err, chain.ErrNilInvoker)

	_, err = chain.Run(ctx, chain.Vars{"output[0]": "x"}, "m", echo(), chain.Prompts("a"), chain.RunOptions{})
	assert.ErrorIs(t, err, chain.ErrReservedKey)

	_, err = chain.Run(ctx, chain.Vars{"topic": "x"}, "m", echo(),
		[]chain.Prompt{{Name: "topic", Template: "a"}}, chain.RunOptions{})
	assert.ErrorIs(t, err, chain.ErrDuplicateName)
}

func TestRunPassesModelAndContextThrough(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	inv := chain.InvokerFunc(func(ctx context.Context, model string, prompt string) (chain.Completion, error) {
		assert.Equal(t, "v", ctx.Value(key{}))
		assert.Equal(t, "acct/model-1", model)
		return chain.Completion{Text: "ok"}, nil
	})
	_, err := chain.Run(ctx, nil, "acct/model-1", inv, chain.Prompts("x"), chain.RunOptions{})
	require.NoError(t, err)
}

func TestRunSubstitutedTextIsNotRescanned(t *testing.T) {
	inv := &scripted{responses: []string{"{{secret}}"}}
	res, err := chain.Run(context.Background(), chain.Vars{"secret": "s3"}, "m", inv,
		chain.Prompts("a", "got {{previous output}}"), chain.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "got {{secret}}", res.Prompts[1])
	assert.False(t, strings.Contains(res.Prompts[1], "s3"))
}

type recordingObserver struct {
	before *[]chain.StepInfo
	after  *[]chain.StepEvent
}

func (o recordingObserver) BeforeStep(ctx context.Context, info chain.StepInfo) context.Context {
	if o.before != nil {
		*o.before = append(*o.before, info)
	}
	return ctx
}

func (o recordingObserver) AfterStep(_ context.Context, ev chain.StepEvent) {
	if o.after != nil {
		*o.after = append(*o.after, ev)
	}
}

func TestObserverSeesEveryStep(t *testing.T) {
	var before []chain.StepInfo
	var after []chain.StepEvent
	obs := chain.MultiObserver{recordingObserver{before: &before}, recordingObserver{after: &after}}

	inv := &scripted{failAt: 3}
	_, err := chain.Run(context.Background(), nil, "m", inv, chain.Prompts("a", "b", "c"),
		chain.RunOptions{Name: "demo", Observer: obs})
	require.Error(t, err)

	require.Len(t, before, 3)
	assert.Equal(t, "demo", before[0].Chain)
	assert.Equal(t, 3, before[2].Total)
	require.Len(t, after, 3)
	assert.NotNil(t, after[0].Record)
	assert.Nil(t, after[2].Record)
	assert.Error(t, after[2].Err)
}
