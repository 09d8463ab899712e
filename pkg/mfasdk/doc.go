/*
Package mfasdk provides a client SDK for the MFA gate service.

# Overview

The SDK wraps the service's HTTP API with typed requests and responses. A
Client acts on behalf of one authenticated principal; the principal identity
is conveyed through the X-Authenticated-Principal header, which the gateway
in front of the service is expected to control.

	client := mfasdk.NewClient("https://mfa.example.com", "alice")

	// Enroll and confirm
	material, err := client.Enroll(ctx, mfasdk.EnrollRequest{Account: "alice@example.com"})
	err = client.ConfirmEnrollment(ctx, codeFromAuthenticator)

	// Verify a challenge for this device
	result, err := client.Verify(ctx, codeFromAuthenticator, deviceFingerprint)

	// Ask whether the principal may proceed
	decision, err := client.Decision(ctx, deviceFingerprint)

# Error Handling

Failed requests return a *GateError carrying the HTTP status, a machine
readable code, and a description. Lockout errors additionally carry a
retry-after timestamp:

	_, err := client.Verify(ctx, code, device)
	var gateErr *mfasdk.GateError
	if errors.As(err, &gateErr) && gateErr.Code == mfasdk.ErrorCodeLocked {
		fmt.Println("locked until", gateErr.RetryAfter)
	}

The service deliberately does not distinguish wrong, replayed, and expired
codes; all three surface as "invalid_code".

# Administrative Operations

Bypass grants name their subject in the request body rather than using the
client's own principal, since they are issued by operators on behalf of a
locked-out principal:

	grant, err := client.GrantBypass(ctx, mfasdk.BypassRequest{
		PrincipalID: "alice",
		Reason:      "authenticator lost, identity verified via helpdesk",
	})
*/
package mfasdk
