package verifier

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
	"github.com/ksysoev/todo-issue-reopener/pkg/runner"
)

// DefaultVerifierURL is the release download URL of slsa-verifier. The %s
// verb is replaced with the verifier version.
const DefaultVerifierURL = "https://github.com/slsa-framework/slsa-verifier/releases/download/%s/slsa-verifier-linux-amd64"

// Fetcher downloads a remote file and returns the local path.
type Fetcher interface {
	Download(ctx context.Context, url string) (string, error)
}

// Request describes an artifact to download and verify.
type Request struct {
	ArtifactURL   string
	ProvenanceURL string

	// SourceURI and SourceTag are the expected source repository (e.g.
	// github.com/ianlewis/todos) and release tag in the provenance.
	SourceURI string
	SourceTag string

	VerifierVersion string
	// VerifierDigest is the sha256 hex digest of the slsa-verifier binary.
	VerifierDigest string
}

// Verifier downloads artifacts and verifies their SLSA provenance with slsa-verifier.
type Verifier struct {
	fetcher     Fetcher
	runner      runner.Runner
	logger      core.Logger
	verifierURL string
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithVerifierURL overrides the slsa-verifier download URL format.
func WithVerifierURL(format string) Option {
	return func(v *Verifier) {
		v.verifierURL = format
	}
}

// New creates a Verifier.
func New(fetcher Fetcher, r runner.Runner, opts ...Option) *Verifier {
	v := &Verifier{
		fetcher:     fetcher,
		runner:      r,
		logger:      core.NopLogger(),
		verifierURL: DefaultVerifierURL,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DownloadAndVerify downloads the artifact, its provenance and slsa-verifier
// concurrently, then verifies the artifact's provenance. On success the
// caller owns the returned artifact path.
func (v *Verifier) DownloadAndVerify(ctx context.Context, req Request) (_ string, err error) {
	var artifactPath, verifierPath, provenancePath string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		verifierPath, err = v.downloadVerifier(gctx, req.VerifierVersion, req.VerifierDigest)
		return err
	})
	g.Go(func() error {
		v.logger.Debugf("Downloading %s", req.ArtifactURL)
		var err error
		artifactPath, err = v.fetcher.Download(gctx, req.ArtifactURL)
		if err == nil {
			v.logger.Debugf("Downloaded %s to %s", req.ArtifactURL, artifactPath)
		}
		return err
	})
	g.Go(func() error {
		v.logger.Debugf("Downloading %s", req.ProvenanceURL)
		var err error
		provenancePath, err = v.fetcher.Download(gctx, req.ProvenanceURL)
		if err == nil {
			v.logger.Debugf("Downloaded %s to %s", req.ProvenanceURL, provenancePath)
		}
		return err
	})

	waitErr := g.Wait()

	defer removeFiles(verifierPath, provenancePath)
	defer func() {
		if err != nil {
			removeFiles(artifactPath)
		}
	}()

	if waitErr != nil {
		return "", waitErr
	}

	if err := v.checkSubject(artifactPath, provenancePath); err != nil {
		return "", err
	}

	v.logger.Debugf("Running slsa-verifier (%s)", verifierPath)

	res, err := v.runner.Run(ctx, "", verifierPath,
		"verify-artifact", artifactPath,
		"--provenance-path", provenancePath,
		"--source-uri", req.SourceURI,
		"--source-tag", req.SourceTag,
	)
	if err != nil {
		return "", &core.VerificationError{ExitCode: -1, Err: err}
	}

	v.logger.Debugf("Ran slsa-verifier (%s): %s", verifierPath, res.Stdout)

	if res.ExitCode != 0 {
		return "", &core.VerificationError{ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return artifactPath, nil
}

// downloadVerifier downloads slsa-verifier, validates its digest and marks it executable.
func (v *Verifier) downloadVerifier(ctx context.Context, version, digest string) (string, error) {
	v.logger.Debugf("Downloading slsa-verifier %s", version)

	path, err := v.fetcher.Download(ctx, fmt.Sprintf(v.verifierURL, version))
	if err != nil {
		return "", err
	}

	v.logger.Debugf("Downloaded slsa-verifier to %s", path)

	if err := ValidateFileDigest(path, digest); err != nil {
		removeFiles(path)
		return "", err
	}

	v.logger.Debugf("Digest for %s validated", path)

	if err := os.Chmod(path, 0o700); err != nil {
		removeFiles(path)
		return "", &core.FileError{Path: path, Err: err}
	}

	return path, nil
}

// checkSubject makes sure the artifact is a subject of the provenance before
// running the verifier. Documents that can't be decoded locally are left to
// slsa-verifier.
func (v *Verifier) checkSubject(artifactPath, provenancePath string) error {
	stmts, err := readStatements(provenancePath)
	if err != nil {
		v.logger.Debugf("Skipping provenance subject check for %s: %v", provenancePath, err)
		return nil
	}

	d, err := fileDigest(artifactPath)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		v.logger.Debugf("Provenance %s built by %q", stmt.PredicateType, stmt.builderID())
	}

	if !hasSubject(stmts, d.Encoded()) {
		return &core.VerificationError{
			ExitCode: -1,
			Reason:   fmt.Sprintf("artifact digest %s is not a subject of the provenance", d),
		}
	}

	return nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p != "" {
			os.Remove(p)
		}
	}
}
