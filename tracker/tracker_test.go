package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytgrowth/excel"
	"ytgrowth/youtube"

	"github.com/xuri/excelize/v2"
)

const day = 24 * time.Hour

var (
	chanNew1 = "UCaaaaaaaaaaaaaaaaaaaaaa"
	chanNew2 = "UCbbbbbbbbbbbbbbbbbbbbbb"
	chanOld1 = "UCcccccccccccccccccccccc"
	chanHid1 = "UCdddddddddddddddddddddd"
	chanNew3 = "UCeeeeeeeeeeeeeeeeeeeeee"
	chanNew4 = "UCffffffffffffffffffffff"
	chanNew5 = "UCgggggggggggggggggggggg"
	chanNew6 = "UChhhhhhhhhhhhhhhhhhhhhh"
	chanNew7 = "UCiiiiiiiiiiiiiiiiiiiiii"
)

// mockSource serves canned search pages keyed by page token and canned
// channels keyed by channel ID.
type mockSource struct {
	pages    map[string]*youtube.SearchPage
	channels map[string]*youtube.ChannelInfo
	fetchErr map[string]error
	onSearch func(call int, token string) (*youtube.SearchPage, error)
	quota    int

	searchCalls int
	fetched     []string
}

func (m *mockSource) SearchRecentVideos(ctx context.Context, publishedAfter time.Time, pageToken string) (*youtube.SearchPage, error) {
	m.searchCalls++
	if m.onSearch != nil {
		return m.onSearch(m.searchCalls, pageToken)
	}
	if page, ok := m.pages[pageToken]; ok {
		return page, nil
	}
	return &youtube.SearchPage{}, nil
}

func (m *mockSource) FetchChannel(ctx context.Context, channelID string) (*youtube.ChannelInfo, error) {
	m.fetched = append(m.fetched, channelID)
	if err, ok := m.fetchErr[channelID]; ok {
		return nil, err
	}
	if info, ok := m.channels[channelID]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("fetch %s: %w", channelID, youtube.ErrChannelNotFound)
}

func (m *mockSource) QuotaUsed() int { return m.quota }

// mockExporter records appended rows and save calls.
type mockExporter struct {
	rows      []youtube.ChannelInfo
	saves     int
	appendErr error
	saveErr   error
}

func (m *mockExporter) Append(info *youtube.ChannelInfo) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, *info)
	return nil
}

func (m *mockExporter) Save() error {
	m.saves++
	return m.saveErr
}

// page builds a search page with one video per channel ID.
func page(nextToken string, channelIDs ...string) *youtube.SearchPage {
	p := &youtube.SearchPage{NextPageToken: nextToken}
	for i, id := range channelIDs {
		p.Items = append(p.Items, youtube.SearchItem{
			VideoID:     fmt.Sprintf("vid-%d", i),
			ChannelID:   id,
			Title:       fmt.Sprintf("Video %d", i),
			PublishedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	return p
}

// channelAged builds a channel created age ago.
func channelAged(id string, age time.Duration, subscribers int64) *youtube.ChannelInfo {
	return &youtube.ChannelInfo{
		ID:          id,
		Title:       "Channel " + id[2:8],
		Description: "Test channel " + id,
		CreatedAt:   time.Now().Add(-age),
		Subscribers: subscribers,
	}
}

func hidden(info *youtube.ChannelInfo) *youtube.ChannelInfo {
	info.HiddenSubscribers = true
	info.Subscribers = 0
	return info
}

// fastOptions keeps empty-page handling from sleeping in tests.
func fastOptions(opts Options) Options {
	if opts.EmptyPageDelay == 0 {
		opts.EmptyPageDelay = time.Millisecond
	}
	return opts
}

func TestRun_ExportsOnlyRecentChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.xlsx")
	wb, err := excel.Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer wb.Close()

	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", chanNew1, chanOld1, chanNew2, chanHid1),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 30*day, 1200),
			chanNew2: channelAged(chanNew2, 170*day, 80),
			chanOld1: channelAged(chanOld1, 400*day, 50000),
			chanHid1: hidden(channelAged(chanHid1, 10*day, 0)),
		},
	}

	tr := New(src, wb, fastOptions(Options{
		MinChannels:   10,
		MaxChannelAge: 180 * day,
	}), nil)

	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stopped != StopFeedExhausted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopFeedExhausted)
	}
	if res.ChannelsFound != 2 {
		t.Errorf("ChannelsFound = %d, want 2", res.ChannelsFound)
	}
	if res.ChannelsExamined != 4 {
		t.Errorf("ChannelsExamined = %d, want 4", res.ChannelsExamined)
	}
	if res.ChannelsSkipped != 1 {
		t.Errorf("ChannelsSkipped = %d, want 1", res.ChannelsSkipped)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(excel.SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (header + 2 channels)", len(rows))
	}

	exported := map[string]bool{}
	for _, row := range rows[1:] {
		exported[row[0]] = true
	}
	for _, id := range []string{chanNew1, chanNew2} {
		if !exported[id] {
			t.Errorf("channel %s missing from workbook", id)
		}
	}
	for _, id := range []string{chanOld1, chanHid1} {
		if exported[id] {
			t.Errorf("channel %s should not be in workbook", id)
		}
	}

	// Rows sort by subscribers, links are well-formed channel URLs.
	if rows[1][0] != chanNew1 || rows[2][0] != chanNew2 {
		t.Errorf("row order = %s, %s; want %s, %s", rows[1][0], rows[2][0], chanNew1, chanNew2)
	}
	for i, id := range []string{chanNew1, chanNew2} {
		cell, err := excelize.CoordinatesToCellName(6, i+2)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		got, err := f.GetCellValue(excel.SheetName, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s) error = %v", cell, err)
		}
		want := youtube.ChannelURL(id)
		if got != want {
			t.Errorf("URL cell %s = %q, want %q", cell, got, want)
		}
		if !strings.HasPrefix(got, "https://www.youtube.com/channel/UC") {
			t.Errorf("URL %q is not a channel link", got)
		}
	}
}

func TestRun_StopsAtTarget(t *testing.T) {
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("more", chanNew1, chanNew2, chanNew3, chanNew4, chanNew5),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
			chanNew2: channelAged(chanNew2, 20*day, 200),
			chanNew3: channelAged(chanNew3, 30*day, 300),
			chanNew4: channelAged(chanNew4, 40*day, 400),
			chanNew5: channelAged(chanNew5, 50*day, 500),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 2}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stopped != StopTargetReached {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopTargetReached)
	}
	if res.ChannelsFound != 2 {
		t.Errorf("ChannelsFound = %d, want 2", res.ChannelsFound)
	}
	if len(src.fetched) != 2 {
		t.Errorf("fetched %d channels, want 2 (stop mid-page)", len(src.fetched))
	}
	if src.searchCalls != 1 {
		t.Errorf("searchCalls = %d, want 1", src.searchCalls)
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want 1", exp.saves)
	}
}

func TestRun_DeduplicatesChannels(t *testing.T) {
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"":   page("t2", chanNew1, chanNew1, chanNew2),
			"t2": page("", chanNew2, chanNew1),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
			chanNew2: channelAged(chanNew2, 20*day, 200),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(src.fetched) != 2 {
		t.Fatalf("fetched = %v, want one lookup per distinct channel", src.fetched)
	}
	if res.ChannelsExamined != 2 || res.ChannelsFound != 2 {
		t.Errorf("examined = %d, found = %d, want 2 and 2", res.ChannelsExamined, res.ChannelsFound)
	}
	if len(exp.rows) != 2 {
		t.Errorf("exported %d rows, want 2", len(exp.rows))
	}
}

func TestRun_SkipsKnownChannels(t *testing.T) {
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", chanNew1, chanNew2),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
			chanNew2: channelAged(chanNew2, 20*day, 200),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50, KnownChannelIDs: []string{chanNew1}}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(src.fetched) != 1 || src.fetched[0] != chanNew2 {
		t.Errorf("fetched = %v, want only %s", src.fetched, chanNew2)
	}
	if res.ChannelsFound != 1 {
		t.Errorf("ChannelsFound = %d, want 1", res.ChannelsFound)
	}
}

func TestRun_EmptyPageRefetchSucceeds(t *testing.T) {
	src := &mockSource{
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
		},
	}
	src.onSearch = func(call int, token string) (*youtube.SearchPage, error) {
		if token != "" {
			t.Errorf("refetch used token %q, want the same empty token", token)
		}
		if call == 1 {
			return &youtube.SearchPage{}, nil
		}
		return page("", chanNew1), nil
	}
	exp := &mockExporter{}

	tr := New(src, exp, fastOptions(Options{MinChannels: 50, EmptyPageRetries: 3}), nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if src.searchCalls != 2 {
		t.Errorf("searchCalls = %d, want 2", src.searchCalls)
	}
	if res.ChannelsFound != 1 {
		t.Errorf("ChannelsFound = %d, want 1", res.ChannelsFound)
	}
	if res.PagesProcessed != 2 {
		t.Errorf("PagesProcessed = %d, want 2", res.PagesProcessed)
	}
}

func TestRun_FeedExhaustedAfterEmptyRetries(t *testing.T) {
	src := &mockSource{}
	exp := &mockExporter{}

	tr := New(src, exp, fastOptions(Options{MinChannels: 50, EmptyPageRetries: 2}), nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stopped != StopFeedExhausted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopFeedExhausted)
	}
	if src.searchCalls != 3 {
		t.Errorf("searchCalls = %d, want 3 (first fetch + 2 refetches)", src.searchCalls)
	}
	if res.ChannelsFound != 0 {
		t.Errorf("ChannelsFound = %d, want 0", res.ChannelsFound)
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want 1", exp.saves)
	}
}

func TestRun_PageLimit(t *testing.T) {
	endless := page("again", chanOld1)
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"":      endless,
			"again": endless,
		},
		channels: map[string]*youtube.ChannelInfo{
			chanOld1: channelAged(chanOld1, 400*day, 100),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50, MaxPages: 3}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stopped != StopPagesExhausted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopPagesExhausted)
	}
	if res.PagesProcessed != 3 {
		t.Errorf("PagesProcessed = %d, want 3", res.PagesProcessed)
	}
	if res.ChannelsFound != 0 {
		t.Errorf("ChannelsFound = %d, want 0", res.ChannelsFound)
	}
}

func TestRun_QuotaExhaustedKeepsPartialResults(t *testing.T) {
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("t2", chanNew1, chanNew2),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
		},
		fetchErr: map[string]error{
			chanNew2: fmt.Errorf("channels: %w", youtube.ErrQuotaExhausted),
		},
		quota: 4200,
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want graceful stop", err)
	}
	if res.Stopped != StopQuotaExhausted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopQuotaExhausted)
	}
	if res.ChannelsFound != 1 {
		t.Errorf("ChannelsFound = %d, want 1", res.ChannelsFound)
	}
	if len(exp.rows) != 1 || exp.rows[0].ID != chanNew1 {
		t.Errorf("exported rows = %v, want just %s", exp.rows, chanNew1)
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want 1", exp.saves)
	}
	if res.QuotaUsed != 4200 {
		t.Errorf("QuotaUsed = %d, want 4200", res.QuotaUsed)
	}
}

func TestRun_QuotaExhaustedOnSearch(t *testing.T) {
	src := &mockSource{
		onSearch: func(call int, token string) (*youtube.SearchPage, error) {
			return nil, fmt.Errorf("search: %w", youtube.ErrQuotaExhausted)
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want graceful stop", err)
	}
	if res.Stopped != StopQuotaExhausted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopQuotaExhausted)
	}
	if res.PagesProcessed != 0 {
		t.Errorf("PagesProcessed = %d, want 0", res.PagesProcessed)
	}
}

func TestRun_AbortsAfterRepeatedFailures(t *testing.T) {
	ids := []string{chanNew1, chanNew2, chanNew3, chanNew4, chanNew5, chanNew6}
	fetchErr := make(map[string]error, len(ids))
	for _, id := range ids {
		fetchErr[id] = errors.New("backend unavailable")
	}
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", ids...),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew7: channelAged(chanNew7, 10*day, 100),
		},
		fetchErr: fetchErr,
	}
	src.pages[""].Items = append(src.pages[""].Items, youtube.SearchItem{VideoID: "vid-x", ChannelID: chanNew7})
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want abort")
	}
	if !strings.Contains(err.Error(), "consecutive") {
		t.Errorf("error = %v, want consecutive-failure abort", err)
	}
	if res.Stopped != StopAborted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopAborted)
	}
	if len(src.fetched) != 5 {
		t.Errorf("fetched %d channels, want abort after 5", len(src.fetched))
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want save even on abort", exp.saves)
	}
}

func TestRun_NotFoundDoesNotAbort(t *testing.T) {
	missing := []string{chanNew1, chanNew2, chanNew3, chanNew4, chanNew5, chanNew6}
	all := append(append([]string{}, missing...), chanNew7)
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", all...),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew7: channelAged(chanNew7, 10*day, 100),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, missing channels should not abort", err)
	}
	if res.ChannelsFound != 1 {
		t.Errorf("ChannelsFound = %d, want 1", res.ChannelsFound)
	}
	if res.ChannelsSkipped != len(missing) {
		t.Errorf("ChannelsSkipped = %d, want %d", res.ChannelsSkipped, len(missing))
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", chanNew1),
		},
	}
	exp := &mockExporter{}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.Stopped != StopCanceled {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopCanceled)
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want save even when canceled", exp.saves)
	}
}

func TestRun_SaveErrorSurfaced(t *testing.T) {
	src := &mockSource{}
	exp := &mockExporter{saveErr: errors.New("disk full")}

	tr := New(src, exp, Options{MinChannels: 50, EmptyPageRetries: -1}, nil)
	res, err := tr.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "save results") {
		t.Fatalf("Run() error = %v, want save failure", err)
	}
	if res.Stopped != StopAborted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopAborted)
	}
}

func TestRun_AppendErrorAborts(t *testing.T) {
	src := &mockSource{
		pages: map[string]*youtube.SearchPage{
			"": page("", chanNew1),
		},
		channels: map[string]*youtube.ChannelInfo{
			chanNew1: channelAged(chanNew1, 10*day, 100),
		},
	}
	exp := &mockExporter{appendErr: errors.New("row rejected")}

	tr := New(src, exp, Options{MinChannels: 50}, nil)
	res, err := tr.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "append channel") {
		t.Fatalf("Run() error = %v, want append failure", err)
	}
	if res.Stopped != StopAborted {
		t.Errorf("Stopped = %v, want %v", res.Stopped, StopAborted)
	}
	if exp.saves != 1 {
		t.Errorf("saves = %d, want 1", exp.saves)
	}
}

func TestNewDefaults(t *testing.T) {
	tr := New(&mockSource{}, &mockExporter{}, Options{}, nil)
	if tr.opts.SearchWindow != 90*day {
		t.Errorf("SearchWindow = %v, want %v", tr.opts.SearchWindow, 90*day)
	}
	if tr.opts.MaxChannelAge != 180*day {
		t.Errorf("MaxChannelAge = %v, want %v", tr.opts.MaxChannelAge, 180*day)
	}
	if tr.opts.MinChannels != 50 {
		t.Errorf("MinChannels = %d, want 50", tr.opts.MinChannels)
	}
	if tr.opts.MaxPages != 100 {
		t.Errorf("MaxPages = %d, want 100", tr.opts.MaxPages)
	}
	if tr.opts.EmptyPageRetries != 3 {
		t.Errorf("EmptyPageRetries = %d, want 3", tr.opts.EmptyPageRetries)
	}
	if tr.opts.EmptyPageDelay != 5*time.Second {
		t.Errorf("EmptyPageDelay = %v, want 5s", tr.opts.EmptyPageDelay)
	}
	if tr.opts.RunID == "" {
		t.Error("RunID not generated")
	}

	disabled := New(&mockSource{}, &mockExporter{}, Options{EmptyPageRetries: -1, EmptyPageDelay: -1}, nil)
	if disabled.opts.EmptyPageRetries != 0 {
		t.Errorf("EmptyPageRetries = %d, want 0 when disabled", disabled.opts.EmptyPageRetries)
	}
	if disabled.opts.EmptyPageDelay != 0 {
		t.Errorf("EmptyPageDelay = %v, want 0 when disabled", disabled.opts.EmptyPageDelay)
	}
}

func TestStopReasonString(t *testing.T) {
	cases := []struct {
		reason StopReason
		want   string
	}{
		{StopTargetReached, "target reached"},
		{StopPagesExhausted, "page limit reached"},
		{StopFeedExhausted, "feed exhausted"},
		{StopQuotaExhausted, "quota exhausted"},
		{StopCanceled, "canceled"},
		{StopAborted, "aborted"},
		{StopReason(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.reason.String(); got != tc.want {
			t.Errorf("StopReason(%d).String() = %q, want %q", tc.reason, got, tc.want)
		}
	}
}
