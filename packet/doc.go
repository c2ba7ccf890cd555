// Package packet defines the closed set of Moonlapse messages and how they are
// laid out on the wire.
//
// # Messages
//
// Every frame carries exactly one Packet. A Packet is one of:
//
//	*Ok        acknowledgement{message}
//	*Deny      refusal{reason}
//	*Login     login{username, password}
//	*Register  register{username, password}
//	*Chat      chat{name, message}
//	*PublicRSAKey  server-public-key{key}
//	*AESKey    symmetric-key-exchange{key}
//
// The interface is sealed; no other package can add a variant.
//
// # Encoding
//
// ProtobufCodec encodes a Packet as the protobuf message
//
//	message Packet {
//	    oneof type {
//	        OkPacket           ok             = 1;
//	        DenyPacket         deny           = 2;
//	        LoginPacket        login          = 3 [(encrypted) = true];
//	        RegisterPacket     register       = 4 [(encrypted) = true];
//	        ChatPacket         chat           = 5;
//	        PublicRSAKeyPacket public_rsa_key = 6;
//	        AESKeyPacket       aes_key        = 7 [(encrypted) = true];
//	    }
//	}
//
// so existing clients built from the same schema interoperate.
//
// # Header and Policy
//
// Header is the one flags byte that precedes each payload. The static policy
// table records which variants must travel encrypted; PolicyCache memoizes
// lookups by variant name and Apply forces a mandated policy over whatever
// the caller asked for.
package packet
