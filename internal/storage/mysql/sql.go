package mysql

// -----------------------------------------------------------------------------
// METRICS
// -----------------------------------------------------------------------------

const listProviderIDsSQL = `SELECT id FROM providers ORDER BY id`

const listCultivarIDsSQL = `SELECT id FROM cultivars ORDER BY id`

// AVG over an empty set is NULL; COALESCE keeps the scan non-nullable.
const providerStatsSQL = `
SELECT
  COUNT(*),
  COALESCE(AVG(overall), 0),
  COALESCE(AVG(shipping), 0),
  COALESCE(AVG(vitality), 0)
FROM reports
WHERE provider_id = ? AND status = 'PUBLISHED'
`

const cultivarStatsSQL = `
SELECT
  COUNT(*),
  COALESCE(AVG(overall), 0),
  COALESCE(AVG(shipping), 0),
  COALESCE(AVG(vitality), 0)
FROM reports
WHERE cultivar_id = ? AND status = 'PUBLISHED'
`

const updateProviderMetricsSQL = `
UPDATE providers
SET avg_score = ?, shipping_score = ?, vitality_score = ?, report_count = ?
WHERE id = ?
`

const updateCultivarMetricsSQL = `
UPDATE cultivars
SET avg_rating = ?, report_count = ?
WHERE id = ?
`

// -----------------------------------------------------------------------------
// CATALOG READS
// -----------------------------------------------------------------------------

const providerCols = `id, name, website, logo_url, avg_score, shipping_score, vitality_score, report_count`

const getProviderSQL = `SELECT ` + providerCols + ` FROM providers WHERE id = ?`

// Best rated first; ties keep a stable id order.
const listProvidersSQL = `SELECT ` + providerCols + ` FROM providers ORDER BY avg_score DESC, id LIMIT ?`

const cultivarCols = `id, name, breeder, image_url, avg_rating, report_count`

const getCultivarSQL = `SELECT ` + cultivarCols + ` FROM cultivars WHERE id = ?`

const listCultivarsSQL = `SELECT ` + cultivarCols + ` FROM cultivars ORDER BY avg_rating DESC, id LIMIT ?`

const reportCols = "id, provider_id, cultivar_id, status, overall, shipping, vitality, notes, image_url, created_at"

// -----------------------------------------------------------------------------
// REPORT WRITES
// -----------------------------------------------------------------------------

const insertReportSQL = `
INSERT INTO reports
  (provider_id, cultivar_id, status, overall, shipping, vitality, notes, image_url, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const setReportStatusSQL = `UPDATE reports SET status = ? WHERE id = ?`

const reportExistsSQL = `SELECT 1 FROM reports WHERE id = ?`
