package sdkbuild

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

// remote artifacts are hashed in fixed-size chunks
const checksumChunkSize = 8192

// Digests holds the checksums recorded for a distribution artifact.
type Digests struct {
	SHA256 string
	B3Sum  string
	Size   int64
}

// ChecksumFile hashes a local file with SHA-256 and BLAKE3 in one pass.
func ChecksumFile(path string) (Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digests{}, &IntegrityError{Artifact: path, Msg: "cannot read artifact", Err: err}
	}
	defer f.Close()

	sh := sha256.New()
	b3 := blake3.New(32, nil)
	n, err := io.CopyBuffer(io.MultiWriter(sh, b3), f, make([]byte, 64*1024))
	if err != nil {
		return Digests{}, &IntegrityError{Artifact: path, Msg: "read failed", Err: err}
	}
	return Digests{
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		B3Sum:  hex.EncodeToString(b3.Sum(nil)),
		Size:   n,
	}, nil
}

// ChecksumSHA256 returns the hex SHA-256 of a local file.
func ChecksumSHA256(path string) (string, error) {
	d, err := ChecksumFile(path)
	if err != nil {
		return "", err
	}
	return d.SHA256, nil
}

// RemoteChecksummer streams remote artifacts through a hash without storing them.
type RemoteChecksummer struct {
	Client   *http.Client
	Progress bool // draw a progress bar on a terminal
}

func newRemoteChecksummer() *RemoteChecksummer {
	return &RemoteChecksummer{Client: newHttpClient(), Progress: true}
}

// SHA256 downloads url in checksumChunkSize reads and returns its hex SHA-256.
// The response body is closed on every path.
func (rc *RemoteChecksummer) SHA256(ctx context.Context, url string) (string, error) {
	d, err := rc.digest(ctx, url, sha256.New())
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(d), nil
}

func (rc *RemoteChecksummer) digest(ctx context.Context, url string, h hash.Hash) ([]byte, error) {
	client := rc.Client
	if client == nil {
		client = newHttpClient()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &IntegrityError{Artifact: url, Msg: "invalid url", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &IntegrityError{Artifact: url, Msg: "remote artifact unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &IntegrityError{Artifact: url, Msg: fmt.Sprintf("unexpected HTTP status %s", resp.Status)}
	}

	var sink io.Writer = h
	if rc.Progress && term.IsTerminal(int(os.Stderr.Fd())) {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("checksum "+filepath.Base(req.URL.Path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		sink = io.MultiWriter(h, bar)
	}

	buf := make([]byte, checksumChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := sink.Write(buf[:n]); err != nil {
				return nil, &IntegrityError{Artifact: url, Msg: "hashing failed", Err: err}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, &IntegrityError{Artifact: url, Msg: "download interrupted", Err: rerr}
		}
	}
	return h.Sum(nil), nil
}

// LoadChecksumMap reads a variant-or-profile to checksum map from JSON or YAML.
func LoadChecksumMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checksums file: %w", err)
	}
	m := make(map[string]string)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse checksums file %s: %w", path, err)
	}
	return m, nil
}
