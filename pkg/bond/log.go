package bond

import "k8s.io/klog/v2"

// bondLogger prefixes every line with the peer id and policy name so a scroll
// of mixed-bond log output can still be attributed, the way every manager in
// the teacher codebase threads its own identity into klog calls.
type bondLogger struct {
	peerID      int64
	policyAlias string
}

func (l bondLogger) logf(format string, args ...interface{}) {
	klog.Infof("bond[peer=%x policy=%s] "+format, append([]interface{}{l.peerID, l.policyAlias}, args...)...)
}

func (l bondLogger) warnf(format string, args ...interface{}) {
	klog.Warningf("bond[peer=%x policy=%s] "+format, append([]interface{}{l.peerID, l.policyAlias}, args...)...)
}
