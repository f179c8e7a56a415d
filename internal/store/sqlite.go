package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lacunalabs/lacuna/internal/core/model"
	"github.com/lacunalabs/lacuna/internal/ids"
)

// SQLite is the persistent Store. The schema is created on open; WAL mode
// keeps readers unblocked while an ingestion run writes.
type SQLite struct {
	*notifier
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{notifier: newNotifier(), db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			size INTEGER NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL,
			error_message TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id),
			content TEXT NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`,
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_id TEXT NOT NULL,
			text TEXT NOT NULL,
			type TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_document ON claims(document_id)`,
		`CREATE TABLE IF NOT EXISTS claim_topics (
			claim_id TEXT NOT NULL,
			topic_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (claim_id, topic_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claim_topics_topic ON claim_topics(topic_id)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			normalized_label TEXT NOT NULL UNIQUE,
			claim_count INTEGER NOT NULL,
			document_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			weight REAL NOT NULL,
			UNIQUE (source_id, target_id, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS contradictions (
			id TEXT PRIMARY KEY,
			claim_a_id TEXT NOT NULL,
			claim_b_id TEXT NOT NULL,
			description TEXT,
			severity TEXT NOT NULL,
			confidence REAL NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gaps (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			topic_ids TEXT NOT NULL,
			gap_type TEXT NOT NULL,
			significance REAL NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			gap_id TEXT NOT NULL,
			question TEXT NOT NULL,
			rationale TEXT,
			impact REAL NOT NULL,
			feasibility REAL NOT NULL,
			overall_score REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY CHECK (key = 'singleton'),
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// --- documents ---

func (s *SQLite) PutDocument(ctx context.Context, doc *model.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, content_hash, size, kind, status, progress, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, content_hash=excluded.content_hash, size=excluded.size,
			kind=excluded.kind, status=excluded.status, progress=excluded.progress,
			error_message=excluded.error_message, updated_at=excluded.updated_at`,
		string(doc.ID), doc.Name, doc.ContentHash, doc.Size, string(doc.Kind),
		string(doc.Status), doc.Progress, doc.ErrorMessage,
		encodeTime(doc.CreatedAt), encodeTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}
	s.publish(KindDocuments)
	return nil
}

func (s *SQLite) scanDocuments(rows *sql.Rows) ([]*model.Document, error) {
	defer rows.Close()
	var out []*model.Document
	for rows.Next() {
		var d model.Document
		var id, kind, status, created, updated string
		var errMsg sql.NullString
		if err := rows.Scan(&id, &d.Name, &d.ContentHash, &d.Size, &kind, &status, &d.Progress, &errMsg, &created, &updated); err != nil {
			return nil, err
		}
		d.ID = ids.DocumentID(id)
		d.Kind = model.DocumentKind(kind)
		d.Status = model.DocumentStatus(status)
		d.ErrorMessage = errMsg.String
		d.CreatedAt = decodeTime(created)
		d.UpdatedAt = decodeTime(updated)
		out = append(out, &d)
	}
	return out, rows.Err()
}

const documentColumns = `id, name, content_hash, size, kind, status, progress, error_message, created_at, updated_at`

func (s *SQLite) getDocumentWhere(ctx context.Context, where string, arg any) (*model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE `+where+` LIMIT 1`, arg)
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	docs, err := s.scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (s *SQLite) GetDocument(ctx context.Context, id ids.DocumentID) (*model.Document, error) {
	return s.getDocumentWhere(ctx, `id = ?`, string(id))
}

func (s *SQLite) GetDocumentByHash(ctx context.Context, hash string) (*model.Document, error) {
	return s.getDocumentWhere(ctx, `content_hash = ?`, hash)
}

func (s *SQLite) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return s.scanDocuments(rows)
}

func (s *SQLite) DeleteDocument(ctx context.Context, id ids.DocumentID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up document: %w", err)
	}

	// Count this document's claim references per topic before removing them.
	rows, err := tx.QueryContext(ctx,
		`SELECT ct.topic_id, COUNT(*) FROM claim_topics ct
		 JOIN claims c ON c.id = ct.claim_id
		 WHERE c.document_id = ?
		 GROUP BY ct.topic_id`, string(id))
	if err != nil {
		return fmt.Errorf("counting topic references: %w", err)
	}
	refs := make(map[string]int)
	for rows.Next() {
		var tid string
		var n int
		if err := rows.Scan(&tid, &n); err != nil {
			rows.Close()
			return err
		}
		refs[tid] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM claim_topics WHERE claim_id IN (SELECT id FROM claims WHERE document_id = ?)`,
		string(id)); err != nil {
		return fmt.Errorf("deleting claim topics: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE document_id = ?`, string(id)); err != nil {
		return fmt.Errorf("deleting claims: %w", err)
	}

	// Child rows first: chunks reference documents and the DSN enforces
	// foreign keys.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, string(id)); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	for tid, n := range refs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE topics SET claim_count = claim_count - ?, document_count = document_count - 1 WHERE id = ?`,
			n, tid); err != nil {
			return fmt.Errorf("decrementing topic counts: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_id IN (SELECT id FROM topics WHERE claim_count <= 0)
		 OR target_id IN (SELECT id FROM topics WHERE claim_count <= 0)`); err != nil {
		return fmt.Errorf("deleting dangling relationships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE claim_count <= 0`); err != nil {
		return fmt.Errorf("deleting orphaned topics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	s.publish(KindDocuments, KindClaims, KindTopics, KindRelationships)
	return nil
}

// --- chunks ---

func (s *SQLite) PutChunks(ctx context.Context, chunks []*model.TextChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, document_id, content, start_offset, end_offset, chunk_index)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			string(c.ID), string(c.DocumentID), c.Content, c.StartOffset, c.EndOffset, c.ChunkIndex); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListChunksByDocument(ctx context.Context, id ids.DocumentID) ([]*model.TextChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, start_offset, end_offset, chunk_index
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`, string(id))
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var out []*model.TextChunk
	for rows.Next() {
		var c model.TextChunk
		var cid, did string
		if err := rows.Scan(&cid, &did, &c.Content, &c.StartOffset, &c.EndOffset, &c.ChunkIndex); err != nil {
			return nil, err
		}
		c.ID = ids.ChunkID(cid)
		c.DocumentID = ids.DocumentID(did)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- claims ---

func (s *SQLite) PutClaim(ctx context.Context, claim *model.Claim) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO claims (id, document_id, chunk_id, text, type, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(claim.ID), string(claim.DocumentID), string(claim.ChunkID),
		claim.Text, string(claim.Type), claim.Confidence, encodeTime(claim.CreatedAt)); err != nil {
		return fmt.Errorf("inserting claim: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM claim_topics WHERE claim_id = ?`, string(claim.ID)); err != nil {
		return fmt.Errorf("clearing claim topics: %w", err)
	}
	for i, tid := range claim.TopicIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO claim_topics (claim_id, topic_id, position) VALUES (?, ?, ?)`,
			string(claim.ID), string(tid), i); err != nil {
			return fmt.Errorf("inserting claim topic: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.publish(KindClaims)
	return nil
}

func (s *SQLite) listClaims(ctx context.Context, where string, args ...any) ([]*model.Claim, error) {
	query := `SELECT id, document_id, chunk_id, text, type, confidence, created_at FROM claims ` +
		where + ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var out []*model.Claim
	index := make(map[string]*model.Claim)
	for rows.Next() {
		var c model.Claim
		var cid, did, chid, ctype, created string
		if err := rows.Scan(&cid, &did, &chid, &c.Text, &ctype, &c.Confidence, &created); err != nil {
			return nil, err
		}
		c.ID = ids.ClaimID(cid)
		c.DocumentID = ids.DocumentID(did)
		c.ChunkID = ids.ChunkID(chid)
		c.Type = model.ClaimType(ctype)
		c.CreatedAt = decodeTime(created)
		out = append(out, &c)
		index[cid] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topicRows, err := s.db.QueryContext(ctx,
		`SELECT claim_id, topic_id FROM claim_topics ORDER BY claim_id, position`)
	if err != nil {
		return nil, fmt.Errorf("listing claim topics: %w", err)
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var cid, tid string
		if err := topicRows.Scan(&cid, &tid); err != nil {
			return nil, err
		}
		if c, ok := index[cid]; ok {
			c.TopicIDs = append(c.TopicIDs, ids.TopicID(tid))
		}
	}
	return out, topicRows.Err()
}

func (s *SQLite) ListClaims(ctx context.Context) ([]*model.Claim, error) {
	return s.listClaims(ctx, ``)
}

func (s *SQLite) ListClaimsByDocument(ctx context.Context, id ids.DocumentID) ([]*model.Claim, error) {
	return s.listClaims(ctx, `WHERE document_id = ?`, string(id))
}

func (s *SQLite) ListClaimsByTopic(ctx context.Context, id ids.TopicID) ([]*model.Claim, error) {
	return s.listClaims(ctx,
		`WHERE id IN (SELECT claim_id FROM claim_topics WHERE topic_id = ?)`, string(id))
}

// --- topics ---

func (s *SQLite) PutTopic(ctx context.Context, topic *model.Topic) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO topics (id, label, normalized_label, claim_count, document_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			label=excluded.label, normalized_label=excluded.normalized_label,
			claim_count=excluded.claim_count, document_count=excluded.document_count`,
		string(topic.ID), topic.Label, topic.NormalizedLabel, topic.ClaimCount, topic.DocumentCount)
	if err != nil {
		return fmt.Errorf("upserting topic: %w", err)
	}
	s.publish(KindTopics)
	return nil
}

func (s *SQLite) scanTopic(row *sql.Row) (*model.Topic, error) {
	var t model.Topic
	var id string
	if err := row.Scan(&id, &t.Label, &t.NormalizedLabel, &t.ClaimCount, &t.DocumentCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.ID = ids.TopicID(id)
	return &t, nil
}

func (s *SQLite) GetTopic(ctx context.Context, id ids.TopicID) (*model.Topic, error) {
	return s.scanTopic(s.db.QueryRowContext(ctx,
		`SELECT id, label, normalized_label, claim_count, document_count FROM topics WHERE id = ?`, string(id)))
}

func (s *SQLite) GetTopicByNormalizedLabel(ctx context.Context, label string) (*model.Topic, error) {
	return s.scanTopic(s.db.QueryRowContext(ctx,
		`SELECT id, label, normalized_label, claim_count, document_count FROM topics WHERE normalized_label = ?`, label))
}

func (s *SQLite) ListTopics(ctx context.Context) ([]*model.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, normalized_label, claim_count, document_count FROM topics ORDER BY normalized_label`)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	defer rows.Close()

	var out []*model.Topic
	for rows.Next() {
		var t model.Topic
		var id string
		if err := rows.Scan(&id, &t.Label, &t.NormalizedLabel, &t.ClaimCount, &t.DocumentCount); err != nil {
			return nil, err
		}
		t.ID = ids.TopicID(id)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// --- relationships ---

func (s *SQLite) PutRelationship(ctx context.Context, rel *model.TopicRelationship) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (id, source_id, target_id, kind, weight)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, kind) DO UPDATE SET weight=excluded.weight`,
		string(rel.ID), string(rel.SourceID), string(rel.TargetID), rel.Kind, rel.Weight)
	if err != nil {
		return fmt.Errorf("upserting relationship: %w", err)
	}
	s.publish(KindRelationships)
	return nil
}

func (s *SQLite) GetRelationship(ctx context.Context, source, target ids.TopicID, kind string) (*model.TopicRelationship, error) {
	source, target = model.CanonicalPair(source, target)
	var r model.TopicRelationship
	var id, sid, tid string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, target_id, kind, weight FROM relationships
		 WHERE source_id = ? AND target_id = ? AND kind = ?`,
		string(source), string(target), kind).Scan(&id, &sid, &tid, &r.Kind, &r.Weight)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.ID = ids.RelationshipID(id)
	r.SourceID = ids.TopicID(sid)
	r.TargetID = ids.TopicID(tid)
	return &r, nil
}

func (s *SQLite) ListRelationships(ctx context.Context) ([]*model.TopicRelationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, target_id, kind, weight FROM relationships ORDER BY source_id, target_id`)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}
	defer rows.Close()

	var out []*model.TopicRelationship
	for rows.Next() {
		var r model.TopicRelationship
		var id, sid, tid string
		if err := rows.Scan(&id, &sid, &tid, &r.Kind, &r.Weight); err != nil {
			return nil, err
		}
		r.ID = ids.RelationshipID(id)
		r.SourceID = ids.TopicID(sid)
		r.TargetID = ids.TopicID(tid)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- contradictions ---

func (s *SQLite) ReplaceContradictions(ctx context.Context, items []*model.Contradiction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contradictions`); err != nil {
		return fmt.Errorf("clearing contradictions: %w", err)
	}
	for _, c := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contradictions (id, claim_a_id, claim_b_id, description, severity, confidence, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(c.ID), string(c.ClaimAID), string(c.ClaimBID), c.Description,
			string(c.Severity), c.Confidence, string(c.Status), encodeTime(c.CreatedAt)); err != nil {
			return fmt.Errorf("inserting contradiction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.publish(KindContradictions)
	return nil
}

func (s *SQLite) ListContradictions(ctx context.Context) ([]*model.Contradiction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, claim_a_id, claim_b_id, description, severity, confidence, status, created_at
		 FROM contradictions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing contradictions: %w", err)
	}
	defer rows.Close()

	var out []*model.Contradiction
	for rows.Next() {
		var c model.Contradiction
		var id, a, b, sev, status, created string
		var desc sql.NullString
		if err := rows.Scan(&id, &a, &b, &desc, &sev, &c.Confidence, &status, &created); err != nil {
			return nil, err
		}
		c.ID = ids.ContradictionID(id)
		c.ClaimAID = ids.ClaimID(a)
		c.ClaimBID = ids.ClaimID(b)
		c.Description = desc.String
		c.Severity = model.Severity(sev)
		c.Status = model.ContradictionStatus(status)
		c.CreatedAt = decodeTime(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateContradictionStatus(ctx context.Context, id ids.ContradictionID, status model.ContradictionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contradictions SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("updating contradiction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.publish(KindContradictions)
	return nil
}

// --- gaps & questions ---

func (s *SQLite) ClearAnalysis(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM gaps`); err != nil {
		return fmt.Errorf("clearing gaps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("clearing questions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.publish(KindGaps, KindQuestions)
	return nil
}

func (s *SQLite) PutGap(ctx context.Context, gap *model.KnowledgeGap) error {
	topicIDs, err := json.Marshal(gap.TopicIDs)
	if err != nil {
		return fmt.Errorf("encoding topic ids: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gaps (id, description, topic_ids, gap_type, significance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(gap.ID), gap.Description, string(topicIDs),
		string(gap.GapType), gap.Significance, encodeTime(gap.CreatedAt)); err != nil {
		return fmt.Errorf("inserting gap: %w", err)
	}
	s.publish(KindGaps)
	return nil
}

func (s *SQLite) ListGaps(ctx context.Context) ([]*model.KnowledgeGap, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, topic_ids, gap_type, significance, created_at
		 FROM gaps ORDER BY significance DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing gaps: %w", err)
	}
	defer rows.Close()

	var out []*model.KnowledgeGap
	for rows.Next() {
		var g model.KnowledgeGap
		var id, topicIDs, gapType, created string
		if err := rows.Scan(&id, &g.Description, &topicIDs, &gapType, &g.Significance, &created); err != nil {
			return nil, err
		}
		g.ID = ids.GapID(id)
		g.GapType = model.GapType(gapType)
		g.CreatedAt = decodeTime(created)
		if err := json.Unmarshal([]byte(topicIDs), &g.TopicIDs); err != nil {
			return nil, fmt.Errorf("decoding topic ids: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (s *SQLite) PutQuestions(ctx context.Context, questions []*model.ResearchQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO questions (id, gap_id, question, rationale, impact, feasibility, overall_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(q.ID), string(q.GapID), q.Question, q.Rationale,
			q.Impact, q.Feasibility, q.OverallScore); err != nil {
			return fmt.Errorf("inserting question: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.publish(KindQuestions)
	return nil
}

func (s *SQLite) ListQuestions(ctx context.Context) ([]*model.ResearchQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, gap_id, question, rationale, impact, feasibility, overall_score
		 FROM questions ORDER BY overall_score DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	defer rows.Close()

	var out []*model.ResearchQuestion
	for rows.Next() {
		var q model.ResearchQuestion
		var id, gid string
		var rationale sql.NullString
		if err := rows.Scan(&id, &gid, &q.Question, &rationale, &q.Impact, &q.Feasibility, &q.OverallScore); err != nil {
			return nil, err
		}
		q.ID = ids.QuestionID(id)
		q.GapID = ids.GapID(gid)
		q.Rationale = rationale.String
		out = append(out, &q)
	}
	return out, rows.Err()
}

// --- settings ---

func (s *SQLite) EnsureSettings(ctx context.Context) (*model.Settings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM settings WHERE key = 'singleton'`).Scan(&payload)
	if err == sql.ErrNoRows {
		defaults := model.DefaultSettings()
		if err := s.PutSettings(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var out model.Settings
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &out, nil
}

func (s *SQLite) PutSettings(ctx context.Context, settings *model.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, payload) VALUES ('singleton', ?)
		 ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`, string(payload)); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	s.publish(KindSettings)
	return nil
}
