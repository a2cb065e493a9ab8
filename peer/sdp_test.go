/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package peer

import "testing"

func TestDescribeOffer(t *testing.T) {
	const header = "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
	audio := "m=audio 9 UDP/TLS/RTP/SAVPF 111\r\nc=IN IP4 0.0.0.0\r\n"
	video := "m=video 9 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\n"
	rejectedVideo := "m=video 0 UDP/TLS/RTP/SAVPF 96\r\nc=IN IP4 0.0.0.0\r\n"

	tests := []struct {
		name    string
		sdp     string
		want    OfferInfo
		wantErr bool
	}{
		{"audio only", header + audio, OfferInfo{Audio: true}, false},
		{"audio and video", header + audio + video, OfferInfo{Audio: true, Video: true}, false},
		{"rejected video", header + audio + rejectedVideo, OfferInfo{Audio: true}, false},
		{"garbage", "not sdp", OfferInfo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DescribeOffer(tt.sdp)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DescribeOffer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DescribeOffer() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
