package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/llm"
	"github.com/mikey/inbox-triage/internal/adapters/mail"
	"github.com/mikey/inbox-triage/internal/adapters/store"
	"github.com/mikey/inbox-triage/internal/buckets"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/di"
)

type options struct {
	flags       di.CLIFlags
	inputFile   string
	bucketFile  string
	contextFile string
	confidence  float64
	useLLM      bool
	jsonOutput  bool
	timeout     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "triage-route",
		Short: "Route one RFC 822 message through a bucket set",
		Long: `triage-route reads a raw email from a file or stdin, resolves the bucket that
owns it and prints the actions that bucket authorizes. With --llm the message
also runs through the configured LLM provider exactly as the daemon would
process it, without persisting anything or sending notifications.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.inputFile, "file", "f", "", "Input email file (use stdin if not specified)")
	f.StringVarP(&opts.bucketFile, "buckets", "b", "", "YAML bucket file (default bucket set if not specified)")
	f.StringVar(&opts.contextFile, "context", "", "Context pack JSON file used for LLM prompts")
	f.Float64Var(&opts.confidence, "confidence", -1, "Apply confidence gates as if the classifier returned this value")
	f.BoolVar(&opts.useLLM, "llm", false, "Run classify, summarize and draft through the configured LLM provider")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	f.DurationVar(&opts.timeout, "step-timeout", time.Minute, "Timeout for each LLM call")
	f.StringVar(&opts.flags.ConfigFile, "config", "", "Path to config file")
	f.StringVar(&opts.flags.Provider, "provider", "", "LLM provider override (openai, gemini, bedrock, anthropic)")
	f.BoolVarP(&opts.flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	f.BoolVar(&opts.flags.JSONLog, "json-log", false, "Output logs in JSON format")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	email, err := readEmail(cmd.InOrStdin(), opts.inputFile)
	if err != nil {
		return err
	}

	set, err := loadBuckets(opts.bucketFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if !opts.useLLM {
		var cls *core.Classification
		if opts.confidence >= 0 {
			cls = &core.Classification{IsRelevant: true, Confidence: opts.confidence}
		}
		return printRoute(cmd.OutOrStdout(), route(email, set, cls), opts.jsonOutput)
	}

	pack, err := loadContextPack(opts.contextFile)
	if err != nil {
		return err
	}

	container, err := di.BuildCLIContainer(&opts.flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(logger *zap.Logger, assistant *llm.Assistant) error {
		defer logger.Sync()
		out := triage(cmd.Context(), logger, assistant, opts.timeout, set, pack, email)
		return printOutcome(cmd.OutOrStdout(), email, out, opts.jsonOutput)
	})
}

func readEmail(stdin io.Reader, path string) (*core.Email, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	email, err := mail.ParseMessage(r)
	if err != nil {
		return nil, err
	}
	email.UserID = "cli"
	return email, nil
}

// loadBuckets reads the bucket file, reporting and skipping invalid buckets
func loadBuckets(path string, errOut io.Writer) ([]core.Bucket, error) {
	if path == "" {
		return buckets.Defaults(), nil
	}

	raw, err := buckets.LoadFile(path)
	if err != nil {
		return nil, err
	}
	set, errs := core.DecodeBuckets(raw)
	for _, err := range errs {
		fmt.Fprintf(errOut, "skipping invalid bucket: %v\n", err)
	}
	return set, nil
}

func loadContextPack(path string) (*core.ContextPack, error) {
	pack := &core.ContextPack{}
	if path == "" {
		return pack, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context pack: %w", err)
	}
	if err := json.Unmarshal(data, pack); err != nil {
		return nil, fmt.Errorf("failed to parse context pack: %w", err)
	}
	return pack, nil
}

// routeResult is the outcome of resolving one email without collaborators
type routeResult struct {
	Matched    bool                   `json:"matched"`
	BucketID   string                 `json:"bucket_id,omitempty"`
	BucketSlug string                 `json:"bucket_slug,omitempty"`
	BucketName string                 `json:"bucket_name,omitempty"`
	Actions    core.AuthorizedActions `json:"actions"`
	Confidence *float64               `json:"confidence,omitempty"`
}

func route(email *core.Email, set []core.Bucket, cls *core.Classification) routeResult {
	bucket, ok := core.Resolve(set, email)
	if !ok {
		return routeResult{}
	}

	res := routeResult{
		Matched:    true,
		BucketID:   bucket.ID,
		BucketSlug: bucket.Slug,
		BucketName: bucket.Name,
		Actions:    core.Authorize(bucket.Actions, cls),
	}
	if cls != nil {
		res.Confidence = &cls.Confidence
	}
	return res
}

// triage runs the email through a coordinator backed by a throwaway
// in-memory store and a log-only notifier
func triage(
	ctx context.Context,
	logger *zap.Logger,
	assistant *llm.Assistant,
	timeout time.Duration,
	set []core.Bucket,
	pack *core.ContextPack,
	email *core.Email,
) *core.Outcome {
	scratch := store.NewMemoryStore(logger, store.Options{})
	defer scratch.Close()
	if err := scratch.AddEmail(ctx, email); err != nil {
		return &core.Outcome{EmailID: email.ID, UserID: email.UserID, Status: core.StatusFailed, Error: err.Error()}
	}

	coordinator := core.NewCoordinator(core.Collaborators{
		Outcomes:   scratch,
		Classifier: assistant,
		Summarizer: assistant,
		Drafter:    assistant,
		Notifier:   mail.NewLogNotifier(logger),
	}, core.PipelineOptions{Workers: 1, StepTimeout: timeout}, logger)

	return coordinator.ProcessEmail(ctx, core.SnapshotBuckets(set), pack, email)
}

func printRoute(w io.Writer, res routeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "=== Routing ===\n")
	if !res.Matched {
		fmt.Fprintf(w, "Bucket: none (left for manual review)\n")
		return nil
	}
	if res.BucketID != "" {
		fmt.Fprintf(w, "Bucket: %s (%s)\n", res.BucketSlug, res.BucketID)
	} else {
		fmt.Fprintf(w, "Bucket: %s\n", res.BucketSlug)
	}
	if res.BucketName != "" {
		fmt.Fprintf(w, "Name: %s\n", res.BucketName)
	}
	if res.Confidence != nil {
		fmt.Fprintf(w, "Confidence: %.2f\n", *res.Confidence)
	}
	fmt.Fprintf(w, "Actions: %s\n", formatActions(res.Actions))
	return nil
}

func printOutcome(w io.Writer, email *core.Email, out *core.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "=== Email Summary ===\n")
	fmt.Fprintf(w, "From: %s\n", email.From)
	fmt.Fprintf(w, "Subject: %s\n", email.Subject)
	fmt.Fprintf(w, "Body length: %d bytes\n\n", len(email.Body))

	fmt.Fprintf(w, "=== Results ===\n")
	bucket := "none"
	if out.BucketSlug != "" {
		bucket = out.BucketSlug
	}
	fmt.Fprintf(w, "Bucket: %s\n", bucket)
	fmt.Fprintf(w, "Status: %s\n", out.Status)
	fmt.Fprintf(w, "Actions: %s\n", formatActions(out.Actions))
	if out.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", out.Error)
	}
	if c := out.Classification; c != nil {
		fmt.Fprintf(w, "Relevant: %t (confidence %.2f, %s)\n", c.IsRelevant, c.Confidence, c.Category)
		if c.Reason != "" {
			fmt.Fprintf(w, "Reason: %s\n", c.Reason)
		}
	}
	if s := out.Summary; s != nil {
		fmt.Fprintf(w, "\n=== Summary ===\n")
		for _, b := range s.Bullets {
			fmt.Fprintf(w, "- %s\n", b)
		}
		if s.SuggestedNextStep != "" {
			fmt.Fprintf(w, "Next step: %s\n", s.SuggestedNextStep)
		}
	}
	if d := out.Draft; d != nil {
		fmt.Fprintf(w, "\n=== Draft ===\n%s\n", d.Text)
		for _, q := range d.ClarifyingQuestions {
			fmt.Fprintf(w, "? %s\n", q)
		}
	}
	fmt.Fprintf(w, "Push: %t\n", out.Pushed)
	return nil
}

func formatActions(a core.AuthorizedActions) string {
	var names []string
	if a.Classify {
		names = append(names, "classify")
	}
	if a.Summarize {
		names = append(names, "summarize")
	}
	if a.Draft {
		names = append(names, "draft")
	}
	if a.Push {
		names = append(names, "push")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
