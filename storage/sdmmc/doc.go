// Package sdmmc drives SD and MMC cards in SPI mode.
//
// A [Card] owns its command and scratch buffers and talks to the card over a
// hal.Bus. [Card.Initialize] runs the bring-up negotiation:
//
//	GO_IDLE_STATE (CMD0)
//	SEND_IF_COND (CMD8, 0x1AA)
//	  accepted: SD_SEND_OP_COND (ACMD41, HCS) until ready, then READ_OCR
//	            (CMD58) to learn whether the card is block addressed
//	  rejected: ACMD41 distinguishes SD v1 from MMC, which uses
//	            SEND_OP_COND (CMD1)
//	SET_BLOCKLEN (CMD16, 512) for byte-addressed cards
//
// Every wait is bounded twice: by a deadline taken from the configured
// pkg.Clock and by an iteration cap, so an unresponsive card always yields a
// distinct error instead of a hang. No operation is retried internally; any
// failure other than [ErrParam] drops the card back to the uninitialized
// state and the caller decides whether to call Initialize again.
package sdmmc
