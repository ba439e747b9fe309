// Package enrollment implements student registration, admin review and emotion
// sample tracking on top of Bun repositories and go-router HTTP helpers.
//
// Account lifecycle:
//   - Accounts carry verified, active and remark fields persisted via Bun. The
//     remark column keeps the historical sentinels ("!ok" pending review, "ok"
//     approved, anything else a decline reason) while Go code works with the
//     Remark tagged variant.
//   - LifecycleMachine owns every legal transition (register, approve, decline,
//     resubmit, activate, deactivate), runs hooks and emits activity events.
//   - AccessStatus classifies an account purely from (verified, active, remark).
//
// Access gate:
//   - Gate answers Allow or Deny for a session principal and a Capability. The
//     admin capability is bound to the reserved admin username of the account
//     behind the session principal, never to request input.
//
// Password reset:
//   - OTPManager issues six digit codes into the server side session bag and
//     mails them to the account's organizational address. Codes are single use
//     and expire after a TTL. A successful verification grants one password
//     rotation, performed by PasswordRotator as a single UPDATE.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by the lifecycle machine,
//     the credential verifier and the OTP manager. Sink errors are logged only.
package enrollment
