// Package auth issues and verifies capability tokens for orders.
//
// A token is an RS256 JWT whose issuer is the server name and whose
// audience is the decimal order id. Holding the token is the only proof
// needed to read that order's receipt; there are no sessions and no
// server-side token state.
//
// Invariants:
//   - Verification uses exactly the algorithm declared in the token header,
//     and only if that algorithm is on the RSA allow-list.
//   - The "none" algorithm is always rejected (ErrNoneAlgorithm).
//   - Audience must equal strconv.FormatInt(orderID, 10), byte for byte.
//
// Known gap: tokens carry no expiry. The only revocation is key rotation.
package auth
