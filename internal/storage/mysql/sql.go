package mysql

// -----------------------------------------------------------------------------
// PROPERTIES
// -----------------------------------------------------------------------------

const propertyColumns = `
  id, name, pms_property_id, channel_property_id, credentials_ref,
  room_types, initial_sync_completed, active, created_at, updated_at`

const upsertPropertySQL = `
INSERT INTO properties
  (id, name, pms_property_id, channel_property_id, credentials_ref, room_types, active)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name                = VALUES(name),
  pms_property_id     = VALUES(pms_property_id),
  channel_property_id = VALUES(channel_property_id),
  room_types          = VALUES(room_types),
  active              = VALUES(active),
  updated_at          = CURRENT_TIMESTAMP(3)
`

const getPropertySQL = `SELECT` + propertyColumns + ` FROM properties WHERE id = ?`

const getPropertyByChannelSQL = `SELECT` + propertyColumns + ` FROM properties WHERE channel_property_id = ?`

const listActivePropertiesSQL = `SELECT` + propertyColumns + ` FROM properties WHERE active = 1 ORDER BY id`

const setCredentialsSQL = `
UPDATE properties SET credentials_ref = ?, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?
`

const markInitialSyncedSQL = `
UPDATE properties SET initial_sync_completed = 1, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?
`

// -----------------------------------------------------------------------------
// MAPPINGS (one JSON document per property and kind)
// -----------------------------------------------------------------------------

const getMappingSQL = `
SELECT mapping FROM property_mappings WHERE property_id = ? AND kind = ?
`

const upsertMappingSQL = `
INSERT INTO property_mappings (property_id, kind, mapping)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  mapping    = VALUES(mapping),
  updated_at = CURRENT_TIMESTAMP(3)
`

// -----------------------------------------------------------------------------
// RESERVATIONS
// -----------------------------------------------------------------------------

const reservationColumns = `
  id, property_id, room_type_id, rate_plan_id, guest_name, guest_email,
  check_in, check_out, adults, children, total_price, currency, status, source,
  pms_booking_id, channel_reservation_id, created_at, updated_at`

const insertReservationSQL = `
INSERT INTO reservations (` + reservationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getReservationSQL = `SELECT` + reservationColumns + ` FROM reservations WHERE id = ?`

// external id columns are chosen from a fixed set, never from input
const findByPMSBookingSQL = `SELECT` + reservationColumns + ` FROM reservations WHERE pms_booking_id = ?`

const findByChannelReservationSQL = `SELECT` + reservationColumns + ` FROM reservations WHERE channel_reservation_id = ?`

const updateReservationStatusSQL = `
UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP(3) WHERE id = ?
`

// Newest first; aligns with index (property_id, created_at, id)
const listReservationsSQL = `SELECT` + reservationColumns + `
FROM reservations
WHERE property_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// -----------------------------------------------------------------------------
// AUDIT (request_logs, append-only)
// -----------------------------------------------------------------------------

const insertAuditSQL = `
INSERT INTO request_logs
  (id, property_id, service, method, endpoint, request_body, response_body,
   status_code, error_message, duration_ms, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const listAuditPrefix = `
SELECT id, property_id, service, method, endpoint, request_body, response_body,
       status_code, error_message, duration_ms, created_at
FROM request_logs
`
