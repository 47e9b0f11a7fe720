package mysql

// The doc column carries the whole Area as JSON. id, version and the
// timestamps are also kept as columns; on read the columns win.

const insertAreaSQL = `
INSERT INTO areas
  (id, name, doc, version, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?)
`

// Conditional on the version the caller loaded.
const updateAreaSQL = `
UPDATE areas
SET
  name       = ?,
  doc        = ?,
  version    = ?,
  updated_at = ?
WHERE id = ? AND version = ?
`

const deleteAreaSQL = `DELETE FROM areas WHERE id = ?`

const existsAreaSQL = `SELECT 1 FROM areas WHERE id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getAreaSQL = `
SELECT id, doc, version, created_at, updated_at
FROM areas
WHERE id = ?
`

// Insertion order, matching the document store's natural order.
const listAreasSQL = `
SELECT id, doc, version, created_at, updated_at
FROM areas
ORDER BY created_at, id
`
