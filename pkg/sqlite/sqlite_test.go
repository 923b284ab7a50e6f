package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"testing"
)

func TestVecExtensionLoaded(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		t.Fatalf("failed to query vec_version(): %v", err)
	}
	if version == "" {
		t.Error("expected a version string, got empty")
	}
}

func TestKnowledgeVectorRelation(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE knowledge (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scope_key TEXT,
		chunk TEXT
	)`)
	if err != nil {
		t.Fatal(err)
	}

	// rowid of the vec0 table is the foreign key back to knowledge.id.
	_, err = db.Exec(`CREATE VIRTUAL TABLE knowledge_vec USING vec0(embedding float[3])`)
	if err != nil {
		t.Fatal(err)
	}

	res, err := db.Exec(`INSERT INTO knowledge (scope_key, chunk) VALUES (?, ?)`, "channel-1", "opening hours 10-22")
	if err != nil {
		t.Fatal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatal(err)
	}

	vec := []float32{0.1, 0.2, 0.3}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO knowledge_vec(rowid, embedding) VALUES (?, ?)`, id, buf.Bytes()); err != nil {
		t.Fatalf("failed to insert vector with rowid: %v", err)
	}

	var chunk string
	err = db.QueryRow(`
		SELECT k.chunk
		FROM knowledge k
		JOIN knowledge_vec v ON k.id = v.rowid
		WHERE v.rowid = ?`, id).Scan(&chunk)
	if err != nil {
		t.Fatalf("join query failed: %v", err)
	}
	if chunk != "opening hours 10-22" {
		t.Errorf("unexpected chunk %q", chunk)
	}
}
