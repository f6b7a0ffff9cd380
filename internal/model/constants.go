package model

// MemberRole 방 멤버 역할
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleEditor MemberRole = "EDITOR"
	RoleViewer MemberRole = "VIEWER"
)

// String 메서드
func (r MemberRole) String() string {
	return string(r)
}

// Valid 허용된 역할인지 확인
func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// RequestStatus 참여 요청 상태
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

func (s RequestStatus) String() string {
	return string(s)
}

// StrokePhase 획 단계. start/end는 전송 전용 마커이고 draw만 저장된다.
type StrokePhase string

const (
	PhaseStart StrokePhase = "start"
	PhaseDraw  StrokePhase = "draw"
	PhaseEnd   StrokePhase = "end"
)

func (p StrokePhase) String() string {
	return string(p)
}
