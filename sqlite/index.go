package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/fwojciec/cratedoc/bloom"
	"github.com/fwojciec/cratedoc/search"
	"github.com/google/uuid"
)

// Ensure IndexService implements cratedoc.IndexService at compile time.
var _ cratedoc.IndexService = (*IndexService)(nil)

// Meta keys.
const (
	metaDocHash   = "doc_hash"
	metaBuiltAt   = "built_at"
	metaItemCount = "item_count"
	metaTrigrams  = "trigrams"
)

// trigramFPRate is the false positive rate of the name prefilter.
const trigramFPRate = 0.01

const itemColumns = `id, name, path, kind, module, visibility, signature, docs,
	span_file, span_begin_line, span_begin_col, span_end_line, span_end_col`

// IndexService stores one search index per documentation unit in its
// own SQLite file.
type IndexService struct {
	Now func() time.Time
}

// NewIndexService creates a new IndexService.
func NewIndexService() *IndexService {
	return &IndexService{Now: time.Now}
}

// Build implements cratedoc.IndexService. The index is written next to
// path and renamed into place, so readers see either the old or the new
// index.
func (s *IndexService) Build(ctx context.Context, path, docHash string, doc *cratedoc.DocArtifact) error {
	if len(doc.Items) > cratedoc.MaxIndexedItems {
		return cratedoc.Errorf(cratedoc.EINVALID, "%s has %d items, more than the %d that can be indexed", doc.Crate, len(doc.Items), cratedoc.MaxIndexedItems)
	}

	tmp := path + ".tmp-" + uuid.New().String()
	if err := s.write(ctx, tmp, docHash, doc); err != nil {
		removeFiles(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		removeFiles(tmp)
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to install index %s", path)
	}
	return nil
}

func (s *IndexService) write(ctx context.Context, path, docHash string, doc *cratedoc.DocArtifact) error {
	db := NewDB(path)
	if err := db.Open(); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to create index %s", path)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to begin index build")
	}
	defer func() { _ = tx.Rollback() }()

	insertItem, err := tx.PrepareContext(ctx, `INSERT INTO items (`+itemColumns+`, ord, name_lower, path_lower)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to prepare item insert")
	}
	defer insertItem.Close()

	insertPosting, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO postings (token, item, field, weight) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to prepare posting insert")
	}
	defer insertPosting.Close()

	items := doc.SortedItems()
	filter := bloom.NewFilter(uint(len(items)*8), trigramFPRate)
	for ord, item := range items {
		var (
			spanFile            sql.NullString
			beginLine, beginCol int
			endLine, endCol     int
		)
		if item.Span != nil {
			spanFile = sql.NullString{String: item.Span.File, Valid: true}
			beginLine, beginCol = item.Span.BeginLine, item.Span.BeginCol
			endLine, endCol = item.Span.EndLine, item.Span.EndCol
		}
		if _, err := insertItem.ExecContext(ctx,
			item.ID, item.Name, item.Path, item.Kind, item.Module, item.Visibility, item.Signature, item.Docs,
			spanFile, beginLine, beginCol, endLine, endCol,
			ord, strings.ToLower(item.Name), strings.ToLower(item.Path),
		); err != nil {
			return cratedoc.WrapError(cratedoc.EIO, err, "failed to index item %s", item.ID)
		}
		for _, term := range search.Terms(item) {
			if _, err := insertPosting.ExecContext(ctx, term.Token, item.ID, string(term.Field), term.Field.Weight()); err != nil {
				return cratedoc.WrapError(cratedoc.EIO, err, "failed to index item %s", item.ID)
			}
		}
		filter.Add(item.Name)
	}

	var grams bytes.Buffer
	if err := gob.NewEncoder(&grams).Encode(filter); err != nil {
		return cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to encode trigram filter")
	}
	meta := map[string][]byte{
		metaDocHash:   []byte(docHash),
		metaBuiltAt:   []byte(s.now().UTC().Format(time.RFC3339)),
		metaItemCount: []byte(strconv.Itoa(len(items))),
		metaTrigrams:  grams.Bytes(),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return cratedoc.WrapError(cratedoc.EIO, err, "failed to write index metadata")
		}
	}

	if err := tx.Commit(); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to commit index")
	}
	return nil
}

func (s *IndexService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// open opens an existing index. Returns ENOTFOUND when there is none.
func (s *IndexService) open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cratedoc.Errorf(cratedoc.ENOTFOUND, "no index at %s", path)
		}
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to stat index %s", path)
	}
	db := NewDB(path)
	if err := db.Open(); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to open index %s", path)
	}
	return db, nil
}

func readMeta(ctx context.Context, db *DB, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cratedoc.Errorf(cratedoc.ENOTFOUND, "index has no %s", key)
	}
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read index metadata")
	}
	return value, nil
}

// Status implements cratedoc.IndexService.
func (s *IndexService) Status(ctx context.Context, path string) (string, error) {
	db, err := s.open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	hash, err := readMeta(ctx, db, metaDocHash)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Search implements cratedoc.IndexService.
func (s *IndexService) Search(ctx context.Context, path string, q cratedoc.SearchQuery) (*cratedoc.SearchPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	db, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	docHash, err := readMeta(ctx, db, metaDocHash)
	if err != nil {
		return nil, err
	}
	fingerprint := search.Fingerprint(q, string(docHash))
	offset, err := search.DecodeCursor(q.Cursor, fingerprint)
	if err != nil {
		return nil, err
	}

	var hits []*cratedoc.SearchHit
	switch q.Mode {
	case cratedoc.SearchExact:
		hits, err = exactHits(ctx, db, q)
	default:
		hits, err = fuzzyHits(ctx, db, q)
	}
	if err != nil {
		return nil, err
	}
	search.SortHits(hits)

	page := &cratedoc.SearchPage{Hits: []*cratedoc.SearchHit{}, Total: len(hits)}
	if offset >= len(hits) {
		return page, nil
	}
	end := min(offset+q.Limit, len(hits))
	page.Hits = hits[offset:end]
	if end < len(hits) {
		page.NextCursor = search.EncodeCursor(end, fingerprint)
	}

	if err := fillHits(ctx, db, page.Hits, q.Preview); err != nil {
		return nil, err
	}
	return page, nil
}

// exactHits matches the pattern as a case-insensitive name substring.
// Hits carry only id, name and kind until filled.
func exactHits(ctx context.Context, db *DB, q cratedoc.SearchQuery) ([]*cratedoc.SearchHit, error) {
	raw, err := readMeta(ctx, db, metaTrigrams)
	if err != nil {
		return nil, err
	}
	var filter bloom.Filter
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&filter); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EINTERNAL, err, "failed to decode trigram filter")
	}
	if !filter.MayContain(q.Pattern) {
		return nil, nil
	}

	var query strings.Builder
	args := []any{strings.ToLower(q.Pattern)}
	query.WriteString(`SELECT id, name, kind FROM items WHERE instr(name_lower, ?) > 0`)
	appendFilters(&query, &args, q.Kind, q.PathPrefix)

	rows, err := db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to search index")
	}
	defer rows.Close()

	var hits []*cratedoc.SearchHit
	for rows.Next() {
		item := &cratedoc.Item{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Kind); err != nil {
			return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read search result")
		}
		if score, ok := search.ExactScore(q.Pattern, item.Name); ok {
			hits = append(hits, &cratedoc.SearchHit{Item: item, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to search index")
	}
	return hits, nil
}

// fuzzyHits scores items by the query tokens that match their postings.
func fuzzyHits(ctx context.Context, db *DB, q cratedoc.SearchQuery) ([]*cratedoc.SearchHit, error) {
	vocab, err := vocabulary(ctx, db)
	if err != nil {
		return nil, err
	}
	matches := search.MatchTerms(q.Pattern, vocab, q.FuzzyDistance)
	if len(matches) == 0 {
		return nil, nil
	}

	acc := search.NewAccumulator()
	for _, m := range matches {
		if err := accumulate(ctx, db, acc, m); err != nil {
			return nil, err
		}
	}
	scores := acc.Scores()

	var query strings.Builder
	var args []any
	query.WriteString(`SELECT id, name, kind FROM items WHERE 1 = 1`)
	appendFilters(&query, &args, q.Kind, q.PathPrefix)

	rows, err := db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to search index")
	}
	defer rows.Close()

	var hits []*cratedoc.SearchHit
	for rows.Next() {
		item := &cratedoc.Item{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Kind); err != nil {
			return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read search result")
		}
		if score, ok := scores[item.ID]; ok {
			hits = append(hits, &cratedoc.SearchHit{Item: item, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to search index")
	}
	return hits, nil
}

func vocabulary(ctx context.Context, db *DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT token FROM postings ORDER BY token`)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read index vocabulary")
	}
	defer rows.Close()

	var vocab []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read index vocabulary")
		}
		vocab = append(vocab, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read index vocabulary")
	}
	return vocab, nil
}

func accumulate(ctx context.Context, db *DB, acc *search.Accumulator, m search.Match) error {
	rows, err := db.QueryContext(ctx, `SELECT item, weight FROM postings WHERE token = ?`, m.Term)
	if err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to read postings")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item   string
			weight float64
		)
		if err := rows.Scan(&item, &weight); err != nil {
			return cratedoc.WrapError(cratedoc.EIO, err, "failed to read postings")
		}
		acc.Add(item, m.Query, weight*m.Similarity)
	}
	if err := rows.Err(); err != nil {
		return cratedoc.WrapError(cratedoc.EIO, err, "failed to read postings")
	}
	return nil
}

// fillHits replaces the partial items of hits with full records, or with
// previews when preview is set.
func fillHits(ctx context.Context, db *DB, hits []*cratedoc.SearchHit, preview bool) error {
	for _, h := range hits {
		if preview {
			h.Item = h.Item.Preview()
			continue
		}
		item, err := getItem(ctx, db, h.Item.ID)
		if err != nil {
			return err
		}
		h.Item = item
	}
	return nil
}

// ListItems implements cratedoc.IndexService.
func (s *IndexService) ListItems(ctx context.Context, path string, f cratedoc.ItemFilter) (*cratedoc.ItemPage, error) {
	if f.Offset < 0 {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "offset must not be negative")
	}
	if f.Limit <= 0 {
		f.Limit = cratedoc.DefaultListLimit
	}
	if f.Limit > cratedoc.MaxSearchLimit {
		f.Limit = cratedoc.MaxSearchLimit
	}

	db, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var where strings.Builder
	var args []any
	where.WriteString(` FROM items WHERE 1 = 1`)
	appendFilters(&where, &args, f.Kind, f.PathPrefix)

	page := &cratedoc.ItemPage{Items: []*cratedoc.Item{}, Offset: f.Offset}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+where.String(), args...).Scan(&page.Total); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to count items")
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + itemColumns + where.String() + ` ORDER BY ord`)
	appendPagination(&query, &args, f.Limit, f.Offset)

	rows, err := db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to list items")
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		if f.Preview {
			item = item.Preview()
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to list items")
	}
	page.HasMore = f.Offset+len(page.Items) < page.Total
	return page, nil
}

// GetItem implements cratedoc.IndexService.
func (s *IndexService) GetItem(ctx context.Context, path, id string) (*cratedoc.Item, error) {
	db, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, db *DB, id string) (*cratedoc.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cratedoc.Errorf(cratedoc.ENOTFOUND, "item %q not found", id)
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*cratedoc.Item, error) {
	var (
		item     cratedoc.Item
		spanFile sql.NullString
		span     cratedoc.Span
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Path, &item.Kind, &item.Module, &item.Visibility, &item.Signature, &item.Docs,
		&spanFile, &span.BeginLine, &span.BeginCol, &span.EndLine, &span.EndCol,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, cratedoc.WrapError(cratedoc.EIO, err, "failed to read item")
	}
	if spanFile.Valid {
		span.File = spanFile.String
		item.Span = &span
	}
	return &item, nil
}

func removeFiles(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
