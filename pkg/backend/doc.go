/*
Package backend is the analytics-facing endpoint of the gateway.

The wire protocol is framed JSON over TCP with an explicit interlock:
every transfer sends an 8-byte little-endian payload length, waits for
the receiver's "ack", sends the payload and waits for a second "ack".
A receiver may answer "nack" to refuse a frame; both words are
lowercase and nothing else is accepted.

A connection carries exactly one conversation, chosen by the task field
of its first frame:

  - new_file_message streams a notification for every object the index
    admits, until the backend disconnects;
  - index answers each {"todo":"index"} request frame with a deep-copy
    snapshot of the index tree, optionally restricted to one namespace;
    nothing is sent unsolicited;
  - file_download answers object requests with the base64-encoded
    contents and tags read from the cluster.
*/
package backend
