// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package appauth

import (
	"context"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	"github.com/sethvargo/go-gcpkms/pkg/gcpkms"
	"google.golang.org/api/option"
)

// NewPrivateKeyFromKMS builds a PrivateKey backed by a Cloud KMS asymmetric
// signing key, for deployments that keep the App's private key material in
// KMS rather than passing PEM bytes through configuration. keyVersionName is
// the full resource name
// "projects/*/locations/*/keyRings/*/cryptoKeys/*/cryptoKeyVersions/*".
func NewPrivateKeyFromKMS(ctx context.Context, keyVersionName string, opts ...option.ClientOption) (*PrivateKey, error) {
	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kms client: %w", err)
	}

	signer, err := gcpkms.NewSigner(ctx, client, keyVersionName)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create kms signer for %q: %w", keyVersionName, err)
	}

	return NewPrivateKeyFromSigner(signer)
}
