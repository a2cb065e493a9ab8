/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package peer

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

// OfferInfo summarises the media sections of a session description.
type OfferInfo struct {
	Audio bool
	Video bool
}

// DescribeOffer parses raw and reports which media it offers. Sections
// rejected with port 0 are not counted.
func DescribeOffer(raw string) (OfferInfo, error) {
	var desc sdp.SessionDescription
	if err := desc.UnmarshalString(raw); err != nil {
		return OfferInfo{}, fmt.Errorf("invalid session description: %w", err)
	}

	var info OfferInfo
	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Port.Value == 0 {
			continue
		}
		switch md.MediaName.Media {
		case "audio":
			info.Audio = true
		case "video":
			info.Video = true
		}
	}
	return info, nil
}
