package httpapi

import (
	"fmt"
	"strings"

	"github.com/daniel-mekuria/zk-server/internal/domain"
	"github.com/daniel-mekuria/zk-server/internal/registry"
)

const (
	defaultMultiBioDataSupport  = "0:1:1:0:0:0:0:1:1:1"
	defaultMultiBioPhotoSupport = "0:1:1:0:0:0:0:1:1:1"
)

// buildInitOptionsBlock renders the init response's options block: one
// KEY=VALUE per line, LF-terminated, in the order terminals expect.
func buildInitOptionsBlock(t *domain.Terminal, timeZoneOffset int) string {
	opts := t.Options
	stampOr := func(key string) string {
		if v, ok := opts[key]; ok && v != "" {
			return v
		}
		return "None"
	}

	lines := []string{
		"GET OPTION FROM: " + t.Serial,
		"ATTLOGStamp=None",
		"OPERLOGStamp=" + stampOr("OPERLOGStamp"),
		"ATTPHOTOStamp=None",
		"BIODATAStamp=" + stampOr("BIODATAStamp"),
		"IDCARDStamp=" + stampOr("IDCARDStamp"),
		"ERRORLOGStamp=" + stampOr("ERRORLOGStamp"),
		"ErrorDelay=30",
		"Delay=10",
		"TransTimes=00:00;12:00",
		"TransInterval=1",
		"TransFlag=TransData EnrollUser ChgUser EnrollFP ChgFP FACE UserPic BioPhoto WORKCODE FVEIN",
		fmt.Sprintf("TimeZone=%d", timeZoneOffset),
		"Realtime=1",
		"Encrypt=None",
		"ServerVer=2.4.1",
		"PushProtVer=2.4.1",
		"PushOptionsFlag=1",
		"PushOptions=FingerFunOn,FaceFunOn,MultiBioDataSupport,MultiBioPhotoSupport,BioPhotoFun,BioDataFun,VisilightFun",
		"MultiBioDataSupport=" + registry.MultiBioDataSupportBitmask(opts, "MultiBioDataSupport", defaultMultiBioDataSupport),
		"MultiBioPhotoSupport=" + registry.MultiBioDataSupportBitmask(opts, "MultiBioPhotoSupport", defaultMultiBioPhotoSupport),
		"ATTPHOTOBase64=1",
	}
	return strings.Join(lines, "\n") + "\n"
}
