// Package http exposes the team meeting engine over a chi router.
//
// Endpoints:
//   - GET /healthz: liveness, 503 when the database is unreachable.
//   - GET /activities/{activityID}/view?group=&redirect=1: resolves the
//     meeting for the caller. A redirect decision answers 302 to the join
//     URL; every other outcome is a JSON `resolutionDTO` whose `state` is one
//     of select_group, unavailable, lobby or ready.
//   - GET /activities/{activityID}/ready?group=: read-only poll answering
//     {"ready","join_url"}.
//   - POST /activities/{activityID}/nominate: body {"group_id"}; makes the
//     caller the organiser and answers {"join_url"}.
//   - GET /activities/{activityID}/meetings: meeting records and remote
//     state for managers.
//   - POST /courses/{courseID}/activities, PUT /activities/{activityID},
//     DELETE /activities/{activityID}: activity lifecycle exchanging the
//     `activityRequest` / `activityDTO` payloads of activity_handler.go.
//
// Every route except /healthz requires either an HS256 bearer JWT whose
// subject is the user id, or an X-Teammeeting-Token web service token.
package http
