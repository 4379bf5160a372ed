package carrier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// DefaultLookaheadSize is how many extra bytes a Url carrier fetches past a
// small read so a sequence of small reads doesn't issue one HTTP range
// request each.
const DefaultLookaheadSize = 64 * 1024

// HTTPDoer is the minimal client contract UrlCarrier needs. *http.Client
// (including one returned by retryablehttp.Client.StandardClient) satisfies
// it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UrlCarrier streams a remote resource via HTTP range requests, presenting
// it as a seekable carrier without ever buffering the whole thing. Length is
// discovered lazily on first use.
type UrlCarrier struct {
	meta   Metadata
	client HTTPDoer
	url    string
	bufSz  int

	pos         int64
	length      int64
	lengthKnown bool
	lookahead   []byte
}

func NewUrlCarrier(meta Metadata, url string, client HTTPDoer, lookaheadSize int) *UrlCarrier {
	if lookaheadSize <= 0 {
		lookaheadSize = DefaultLookaheadSize
	}
	return &UrlCarrier{meta: meta, client: client, url: url, bufSz: lookaheadSize}
}

func (u *UrlCarrier) Metadata() Metadata { return u.meta }

func (u *UrlCarrier) ensureLength(ctx context.Context) error {
	if u.lengthKnown {
		return nil
	}
	if req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.url, nil); err == nil {
		if resp, derr := u.client.Do(req); derr == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode/100 == 2 && resp.ContentLength >= 0 {
				u.length = resp.ContentLength
				u.lengthKnown = true
				return nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return pipeerr.Network("urlcarrier.ensureLength", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := u.client.Do(req)
	if err != nil {
		return pipeerr.Network("urlcarrier.ensureLength", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeerr.Network("urlcarrier.ensureLength", err)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			u.length = total
		} else {
			u.length = int64(len(body))
		}
		u.lookahead = body
		u.lengthKnown = true
		return nil
	case http.StatusOK:
		u.length = int64(len(body))
		u.lookahead = body
		u.lengthKnown = true
		return nil
	default:
		return pipeerr.Networkf("urlcarrier.ensureLength", "unexpected status %d fetching %s", resp.StatusCode, u.url)
	}
}

func parseContentRangeTotal(header string) (int64, bool) {
	// "bytes start-end/total"
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, false
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// rangedGet fetches [start,end] inclusive, following up with further
// requests if the server returns a shorter partial-content range than asked,
// and slicing client-side if the server ignores Range entirely (200 OK).
func (u *UrlCarrier) rangedGet(ctx context.Context, start, end int64) ([]byte, error) {
	var out []byte
	for start <= end {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
		if err != nil {
			return out, pipeerr.Network("urlcarrier.rangedGet", err)
		}
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		resp, err := u.client.Do(req)
		if err != nil {
			return out, pipeerr.Network("urlcarrier.rangedGet", err)
		}
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if rerr != nil {
			return out, pipeerr.Network("urlcarrier.rangedGet", rerr)
		}
		switch resp.StatusCode {
		case http.StatusPartialContent:
			out = append(out, body...)
			if len(body) == 0 {
				return out, nil
			}
			start += int64(len(body))
		case http.StatusOK:
			lo := start
			if lo > int64(len(body)) {
				lo = int64(len(body))
			}
			hi := end + 1
			if hi > int64(len(body)) {
				hi = int64(len(body))
			}
			if hi > lo {
				out = append(out, body[lo:hi]...)
			}
			return out, nil
		default:
			return out, pipeerr.Networkf("urlcarrier.rangedGet", "unexpected status %d fetching %s", resp.StatusCode, u.url)
		}
	}
	return out, nil
}

// Read implements Carrier. It serves from the lookahead buffer first, then
// issues range requests sized to at least bufSz so later small reads are
// amortized.
func (u *UrlCarrier) Read(ctx context.Context, n int) ([]byte, error) {
	if err := u.ensureLength(ctx); err != nil {
		return nil, err
	}
	if u.pos >= u.length {
		return []byte{}, nil
	}
	if n == 0 {
		return []byte{}, nil
	}
	if n < 0 {
		n = int(u.length - u.pos)
	}

	result := make([]byte, 0, n)
	if len(u.lookahead) > 0 {
		take := min(len(u.lookahead), n)
		result = append(result, u.lookahead[:take]...)
		u.lookahead = u.lookahead[take:]
		u.pos += int64(take)
	}
	for len(result) < n && u.pos < u.length {
		remaining := n - len(result)
		fetchSize := remaining
		if fetchSize < u.bufSz {
			fetchSize = u.bufSz
		}
		end := u.pos + int64(fetchSize) - 1
		if end > u.length-1 {
			end = u.length - 1
		}
		data, err := u.rangedGet(ctx, u.pos, end)
		if err != nil {
			return result, err
		}
		if len(data) == 0 {
			break
		}
		take := min(len(data), remaining)
		result = append(result, data[:take]...)
		u.pos += int64(take)
		if take < len(data) {
			u.lookahead = data[take:]
		}
	}
	return result, nil
}

func (u *UrlCarrier) Next(ctx context.Context) ([]byte, error) {
	chunk, err := u.Read(ctx, DefaultChunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// Seek discovers length synchronously via context.Background() if it isn't
// known yet, since the Seeker contract takes no context.
func (u *UrlCarrier) Seek(offset int64, whence int) (int64, error) {
	if err := u.ensureLength(context.Background()); err != nil {
		return u.pos, err
	}
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = u.pos + offset
	case io.SeekEnd:
		newPos = u.length + offset
	default:
		return u.pos, pipeerr.Invalidf("urlcarrier.Seek", "invalid whence %d", whence)
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > u.length {
		newPos = u.length
	}
	if newPos != u.pos {
		u.lookahead = nil
	}
	u.pos = newPos
	return u.pos, nil
}

func (u *UrlCarrier) Tell() (int64, error) { return u.pos, nil }

func (u *UrlCarrier) Len() int64 { return u.length }

type urlReaderAt struct{ u *UrlCarrier }

func (r *urlReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.u.length {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end > r.u.length-1 {
		end = r.u.length - 1
	}
	data, err := r.u.rangedGet(context.Background(), off, end)
	if err != nil {
		return 0, err
	}
	n := copy(p, data)
	if n < len(p) && off+int64(n) >= r.u.length {
		return n, io.EOF
	}
	return n, nil
}

// ReaderAt hands out random access over the remote resource without
// buffering it locally; each ReadAt call issues its own ranged GET.
func (u *UrlCarrier) ReaderAt(ctx context.Context) (io.ReaderAt, int64, error) {
	if err := u.ensureLength(ctx); err != nil {
		return nil, 0, err
	}
	return &urlReaderAt{u: u}, u.length, nil
}
