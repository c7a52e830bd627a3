// Package events defines the typed relay event contract.
//
// Event kinds are grouped by originating-connection namespaces:
//
//   - call_leg.*
//   - agent_session.*
//
// Semantics used across the package:
//
//   - Payload/Audio: base64-encoded audio exactly as carried on the wire;
//     the relay never decodes or transcodes it.
//   - Started/Stopped: lifecycle boundaries of the call leg's media stream.
//
// call_leg events
//
//   - CallStarted (call_leg.started): the telephony side bound the stream
//     and call identifiers and supplied the custom parameters.
//   - CallMedia (call_leg.media): one base64 frame of caller audio.
//   - CallStopped (call_leg.stopped): end of call audio; the underlying
//     connection may outlive this event briefly.
//
// agent_session events
//
//   - AgentAudioChunk (agent_session.audio_chunk): one base64 frame of
//     synthesized agent audio.
//   - AgentInterruption (agent_session.interruption): the caller barged in;
//     buffered agent audio must be flushed from playback.
//   - AgentTranscript (agent_session.transcript): what the agent said.
//   - UserTranscript (agent_session.user_transcript): what the caller said.
//   - InitiationMetadata (agent_session.initiation_metadata): the agent
//     session acknowledged the initiation payload.
//
// Keepalive pings from the agent transport are answered inside the agent
// adapter and never surface as events.
package events
